package response

import (
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestDefaultMessageForStatus(t *testing.T) {
	cases := map[int]string{
		fiber.StatusAccepted:         MessageAccepted,
		fiber.StatusFailedDependency: MessageFailedDependency,
		fiber.StatusBadGateway:       MessageBadGateway,
		fiber.StatusTeapot:           MessageError,
		fiber.StatusGatewayTimeout:   MessageInternalServerError,
	}
	for status, want := range cases {
		if got := defaultMessageForStatus(status); got != want {
			t.Errorf("status %d: got %q want %q", status, got, want)
		}
	}
	if normalizeStatus(42) != fiber.StatusInternalServerError {
		t.Fatalf("out-of-range status must become 500")
	}
}
