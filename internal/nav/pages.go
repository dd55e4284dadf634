package nav

type PageID string

const (
	PageHome     PageID = "home"
	PageShop     PageID = "shop"
	PageStock    PageID = "stock"
	PageAbout    PageID = "about"
	PageContact  PageID = "contact"
	PageNotFound PageID = "not-found"
)

// RootPath is used whenever the environment cannot report a location.
const RootPath = "/"

var routes = []struct {
	path string
	page PageID
}{
	{RootPath, PageHome},
	{"/shop", PageShop},
	{"/current-stock", PageStock},
	{"/about", PageAbout},
	{"/contact", PageContact},
}

// Resolve maps a path to exactly one page. Matching is exact; anything
// unknown is PageNotFound.
func Resolve(path string) PageID {
	for _, r := range routes {
		if r.path == path {
			return r.page
		}
	}
	return PageNotFound
}

// Paths lists the navigable paths in menu order.
func Paths() []string {
	paths := make([]string, 0, len(routes))
	for _, r := range routes {
		paths = append(paths, r.path)
	}
	return paths
}
