package respond

import (
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// Error represents a standard structure for error responses.
type Error struct {
	Message string `json:"error"`
}

// JSON sends a JSON response with the specified HTTP status code and data.
// It uses the Gin context to encode the data into JSON format.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response with the given body.
func OK(c *ginext.Context, body interface{}) {
	JSON(c, http.StatusOK, body)
}

// Image writes raw image bytes with the given content type.
func Image(c *ginext.Context, status int, contentType string, data []byte) {
	c.Data(status, contentType, data)
}

// Attachment writes data as a file download named filename.
func Attachment(c *ginext.Context, contentType, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	Image(c, http.StatusOK, contentType, data)
}

// Fail sends an error JSON response with the specified HTTP status code.
// The error message is wrapped in an Error struct.
func Fail(c *ginext.Context, status int, err error) {
	JSON(c, status, Error{Message: err.Error()})
}
