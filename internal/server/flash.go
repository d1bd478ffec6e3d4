package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

const flashCookie = "flash"

type flashMessage struct {
	Category string `json:"c"`
	Text     string `json:"t"`
}

// flashCodec carries one-shot messages across a redirect in a cookie signed
// with HMAC-SHA256. A cookie with a bad signature is ignored.
type flashCodec struct {
	key    []byte
	secure bool
}

func (f flashCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, f.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (f flashCodec) encode(msgs []flashMessage) (string, error) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + f.sign(payload), nil
}

func (f flashCodec) decode(value string) ([]flashMessage, bool) {
	payload, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(f.sign(payload))) {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	var msgs []flashMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false
	}
	return msgs, true
}

// add appends a message to any already pending in the request.
func (f flashCodec) add(w http.ResponseWriter, r *http.Request, category, text string) {
	msgs, _ := f.peek(r)
	msgs = append(msgs, flashMessage{Category: category, Text: text})
	value, err := f.encode(msgs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (f flashCodec) peek(r *http.Request) ([]flashMessage, bool) {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil, false
	}
	return f.decode(c.Value)
}

// pop returns the pending messages and clears the cookie.
func (f flashCodec) pop(w http.ResponseWriter, r *http.Request) []flashMessage {
	if _, err := r.Cookie(flashCookie); err != nil {
		return nil
	}
	msgs, _ := f.peek(r)
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return msgs
}
