package vonage

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Send dispatches a WhatsApp text message to toNumber. The returned
// error, when it is a *SendError with Permanent() == true, means the
// destination itself was rejected and the caller should stop contacting
// it.
func (c *Client) Send(ctx context.Context, toNumber, text string) (*SendResult, error) {
	message := WhatsAppMessage{
		To:          toNumber,
		From:        c.config.SenderID,
		Channel:     "whatsapp",
		MessageType: "text",
		Text:        text,
	}

	resp, err := c.sendMessageRequest(ctx, "POST", c.config.MessagesAPIURL, message)
	if err != nil {
		return &SendResult{Success: false, Error: err.Error()}, err
	}

	return &SendResult{
		Success:           true,
		ProviderMessageID: resp.MessageUUID,
	}, nil
}

// CheckConnectivity probes the Messages API endpoint. Any authenticated
// HTTP response counts as online; auth failures and transport errors
// count as offline.
func (c *Client) CheckConnectivity(ctx context.Context) ConnectivityStatus {
	req, err := http.NewRequestWithContext(ctx, "GET", c.config.MessagesAPIURL, nil)
	if err != nil {
		return ConnectivityStatus{Online: false, Error: err.Error()}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Vonage connectivity probe failed")
		return ConnectivityStatus{Online: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ConnectivityStatus{Online: false, Error: "authentication rejected by provider"}
	}

	return ConnectivityStatus{Online: true}
}

// IsPermanentSendError reports whether err is a provider rejection that
// will never succeed for this destination.
func IsPermanentSendError(err error) bool {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Permanent()
	}
	return false
}
