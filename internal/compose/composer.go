package compose

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ignite/dispatch-engine/internal/domain"
)

var linkRe = regexp.MustCompile(`href=["'](https?://[^"']+)["']`)

// Composer rewrites message bodies and headers for tracking. Safe for
// concurrent use; all state is immutable after construction.
type Composer struct {
	trackingURL string
	key         []byte
}

// NewComposer creates a composer. trackingURL is the public base URL of the
// tracking endpoints, without a trailing slash.
func NewComposer(trackingURL, signingKey string) *Composer {
	return &Composer{
		trackingURL: strings.TrimRight(trackingURL, "/"),
		key:         []byte(signingKey),
	}
}

// MessageID derives the stable tracking identity for one recipient of a
// message. Equal inputs always produce the same id.
func MessageID(msg *domain.Message, recipient string) string {
	sum := sha256.Sum256([]byte(msg.TenantID + "|" + msg.CampaignID + "|" + strings.ToLower(recipient) + "|" + msg.Subject))
	return hex.EncodeToString(sum[:16])
}

// Prepare finalizes msg in place for its first recipient: unsubscribe
// headers always, pixel and click rewriting only when tracking is enabled.
func (c *Composer) Prepare(msg *domain.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	recipient := msg.To[0]
	if msg.Headers == nil {
		msg.Headers = make(map[string]string)
	}

	unsubURL := c.UnsubscribeURL(msg.TenantID, msg.CampaignID, recipient)
	msg.Headers["List-Unsubscribe"] = fmt.Sprintf("<%s>", unsubURL)
	msg.Headers["List-Unsubscribe-Post"] = "List-Unsubscribe=One-Click"

	if !msg.TrackingEnabled || msg.HTMLBody == "" {
		return nil
	}

	id := MessageID(msg, recipient)
	msg.HTMLBody = c.rewriteLinks(msg.HTMLBody, msg.TenantID, msg.CampaignID, recipient, id)
	msg.HTMLBody = c.injectPixel(msg.HTMLBody, msg.TenantID, msg.CampaignID, recipient, id)
	return nil
}

// OpenPixelURL returns the signed open-tracking pixel URL.
func (c *Composer) OpenPixelURL(tenantID, campaignID, recipient, messageID string) string {
	data := fmt.Sprintf("%s|%s|%s|%s", tenantID, campaignID, recipient, messageID)
	return fmt.Sprintf("%s/track/open/%s/%s", c.trackingURL, encode(data), c.sign(data))
}

// ClickURL returns the signed redirect URL wrapping originalURL.
func (c *Composer) ClickURL(tenantID, campaignID, recipient, messageID, originalURL string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s", tenantID, campaignID, recipient, messageID, originalURL)
	return fmt.Sprintf("%s/track/click/%s/%s", c.trackingURL, encode(data), c.sign(data))
}

// UnsubscribeURL returns the signed one-click unsubscribe URL.
func (c *Composer) UnsubscribeURL(tenantID, campaignID, recipient string) string {
	data := fmt.Sprintf("%s|%s|%s", tenantID, campaignID, recipient)
	return fmt.Sprintf("%s/track/unsubscribe/%s/%s", c.trackingURL, encode(data), c.sign(data))
}

// Decode verifies a tracking token and returns its pipe-separated fields.
// fields caps the split so a trailing URL field may itself contain pipes.
func (c *Composer) Decode(encoded, signature string, fields int) ([]string, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding")
	}
	data := string(raw)
	if !hmac.Equal([]byte(c.sign(data)), []byte(signature)) {
		return nil, fmt.Errorf("invalid signature")
	}
	return strings.SplitN(data, "|", fields), nil
}

func (c *Composer) rewriteLinks(html, tenantID, campaignID, recipient, messageID string) string {
	return linkRe.ReplaceAllStringFunc(html, func(match string) string {
		groups := linkRe.FindStringSubmatch(match)
		original := groups[1]
		// Tracking and unsubscribe links stay untouched.
		if strings.Contains(original, "/track/") || strings.Contains(strings.ToLower(original), "unsubscribe") {
			return match
		}
		return fmt.Sprintf(`href="%s"`, c.ClickURL(tenantID, campaignID, recipient, messageID, original))
	})
}

func (c *Composer) injectPixel(html, tenantID, campaignID, recipient, messageID string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" />`,
		c.OpenPixelURL(tenantID, campaignID, recipient, messageID))
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", pixel+"</body>", 1)
	}
	return html + pixel
}

func (c *Composer) sign(data string) string {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func encode(data string) string {
	return base64.URLEncoding.EncodeToString([]byte(data))
}
