package handler

import (
	"net/http"

	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

// Voice handles POST /voice, the Twilio incoming-call webhook. It answers
// with TwiML that connects the call's audio to the media stream endpoint.
func (h *Handlers) Voice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	streamURL := h.streamURL(r)

	stream := &twiml.VoiceStream{Url: streamURL}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		h.logger.Error("build twiml failed", zap.Error(err))
		http.Error(w, "cannot handle call", http.StatusInternalServerError)
		return
	}

	h.logger.Info("incoming call",
		zap.String("callSid", r.PostFormValue("CallSid")),
		zap.String("from", r.PostFormValue("From")),
		zap.String("to", r.PostFormValue("To")),
		zap.String("stream", streamURL),
	)
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(doc))
}

func (h *Handlers) streamURL(r *http.Request) string {
	if h.StreamURL != "" {
		return h.StreamURL
	}
	return "wss://" + r.Host + "/twilio"
}
