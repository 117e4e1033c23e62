package sources

// LoginFlow names how a source authenticates writes.
type LoginFlow int

const (
	// LoginNone: the source is read-only or anonymous.
	LoginNone LoginFlow = iota
	// LoginCookie: stored cookies injected as a literal header.
	LoginCookie
	// LoginFormCSRF: cookies plus a scraped form/CSRF token on writes.
	LoginFormCSRF
)

// Capability is the table-driven description of per-source quirks, so the
// quirk set lives in data rather than scattered conditionals.
type Capability struct {
	BaseURL        string
	Encoding       string // "utf-8" or a legacy charset like "gb18030"
	Login          LoginFlow
	SupportsPost   bool
	SupportsCreate bool
	PagedLists     bool // false: only page 1 exists, later pages are empty
	ReportsPages   bool // detail responses carry a total page count
}

// Capabilities maps source id to its quirk table. Base URLs here are
// defaults; constructors take the configured value.
var Capabilities = map[string]Capability{
	"discourse": {
		BaseURL:  "https://linux.do",
		Encoding: "utf-8",
		Login:    LoginCookie,
		SupportsPost: true, SupportsCreate: true,
		PagedLists: true, ReportsPages: true,
	},
	"legacybbs": {
		BaseURL:  "https://www.4d4y.com/forum",
		Encoding: "gb18030",
		Login:    LoginFormCSRF,
		SupportsPost: true, SupportsCreate: true,
		PagedLists: true, ReportsPages: true,
	},
	"socialfeed": {
		BaseURL:  "https://www.zhihu.com",
		Encoding: "utf-8",
		Login:    LoginCookie,
		SupportsPost: false, SupportsCreate: false,
		PagedLists: true,
	},
	"linkagg": {
		BaseURL:  "https://hacker-news.firebaseio.com/v0",
		Encoding: "utf-8",
		Login:    LoginNone,
	},
	"qa": {
		BaseURL:  "https://www.v2ex.com",
		Encoding: "utf-8",
		Login:    LoginFormCSRF,
		SupportsPost: true,
	},
	"rss": {
		Encoding: "utf-8",
		Login:    LoginNone,
	},
}
