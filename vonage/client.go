package vonage

import (
	"net/http"
	"time"
)

// Client talks to the Vonage Messages API. It is the engine's only
// outbound channel; every call carries a bounded timeout.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(vonageJWT, messagesAPIURL, senderID string, timeout time.Duration) Client {
	client := Client{
		config: Config{
			VonageJWT:      vonageJWT,
			MessagesAPIURL: messagesAPIURL,
			SenderID:       senderID,
		},
		httpClient: &http.Client{Timeout: timeout},
	}

	return client
}
