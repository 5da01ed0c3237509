package vonage

import "fmt"

type Config struct {
	VonageJWT      string
	MessagesAPIURL string
	SenderID       string
}

type WhatsAppMessage struct {
	To          string `json:"to"`
	From        string `json:"from"`
	Channel     string `json:"channel"`
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
}

type MessageResponse struct {
	MessageUUID string `json:"message_uuid"`
}

// SendResult reports the outcome of one dispatch attempt.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

// ConnectivityStatus reports whether the sending account is reachable
// and authenticated.
type ConnectivityStatus struct {
	Online bool
	Error  string
}

// SendError is a dispatch rejection from the provider. Permanent
// rejections (bad destination, blocked number) must not be retried;
// everything else is transient.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("vonage rejected message: status %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether retrying the same destination can ever
// succeed. 4xx responses other than rate limiting and request timeout
// mean the destination or payload itself is bad.
func (e *SendError) Permanent() bool {
	if e.StatusCode == 408 || e.StatusCode == 429 {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}
