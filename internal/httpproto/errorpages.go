package httpproto

// Canned HTML bodies for error responses (spec §1: "the static HTML error-
// page text" is an external collaborator; kept minimal here since no such
// collaborator text was supplied).
const (
	Page400 = "<html><head><title>400 Bad Request</title></head>" +
		"<body><h1>400 Bad Request</h1></body></html>"
	Page404 = "<html><head><title>404 Not Found</title></head>" +
		"<body><h1>404 Not Found</h1></body></html>"
	Page405 = "<html><head><title>405 Method Not Allowed</title></head>" +
		"<body><h1>405 Method Not Allowed</h1></body></html>"
	Page500 = "<html><head><title>500 Internal Server Error</title></head>" +
		"<body><h1>500 Internal Server Error</h1></body></html>"
)
