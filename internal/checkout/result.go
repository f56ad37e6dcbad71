package checkout

import "github.com/samber/lo"

// Result codes returned by the backend. Matching is exact and case-sensitive.
const (
	ResultAuthorised = "Authorised"
	ResultPending    = "Pending"
	ResultReceived   = "Received"
	ResultRefused    = "Refused"
)

// ResultPage identifies one of the fixed result pages.
type ResultPage string

const (
	PageSuccess ResultPage = "success"
	PagePending ResultPage = "pending"
	PageFailed  ResultPage = "failed"
	PageError   ResultPage = "error"
)

// ResultPages lists every page in display order.
var ResultPages = []ResultPage{PageSuccess, PagePending, PageFailed, PageError}

// Path returns the redirect target for the page.
func (p ResultPage) Path() string {
	return "/result/" + string(p)
}

// Valid reports whether p is one of the known pages.
func (p ResultPage) Valid() bool {
	return lo.Contains(ResultPages, p)
}

// ParseResultPage resolves a page name, falling back to the error page for anything unknown.
func ParseResultPage(name string) ResultPage {
	if p := ResultPage(name); p.Valid() {
		return p
	}
	return PageError
}

// RouteResult maps a result code to its page. Unknown and empty codes land on the error page.
func RouteResult(resultCode string) ResultPage {
	switch resultCode {
	case ResultAuthorised:
		return PageSuccess
	case ResultPending, ResultReceived:
		return PagePending
	case ResultRefused:
		return PageFailed
	default:
		return PageError
	}
}
