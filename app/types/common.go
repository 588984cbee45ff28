package types

import (
	"net"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// OrderID accepts an order id sent as a JSON number, a JSON string or a form
// value.
type OrderID uint64

func (id *OrderID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return err
	}
	*id = OrderID(parsed)
	return nil
}

func (id *OrderID) UnmarshalParam(param string) error {
	return id.UnmarshalJSON([]byte(param))
}

// ClientIPFromContext resolves the customer address from the Client-IP
// header, then the first X-Forwarded-For entry, then the peer address.
// Anything that is not an IP address becomes 0.0.0.0.
func ClientIPFromContext(ctx echo.Context) string {
	req := ctx.Request()

	candidate := strings.TrimSpace(req.Header.Get("Client-IP"))
	if candidate == "" {
		if forwarded := req.Header.Get(echo.HeaderXForwardedFor); forwarded != "" {
			candidate = strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}
	}
	if candidate == "" {
		candidate = req.RemoteAddr
		if host, _, err := net.SplitHostPort(candidate); err == nil {
			candidate = host
		}
	}

	if net.ParseIP(candidate) == nil {
		return "0.0.0.0"
	}
	return candidate
}

func parseOrderIDParam(ctx echo.Context) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
}
