package model

// RootResponse is the body of GET /.
type RootResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// PhoneNumber is one Twilio incoming phone number.
type PhoneNumber struct {
	SID          string `json:"sid"`
	PhoneNumber  string `json:"phoneNumber"`
	FriendlyName string `json:"friendlyName,omitempty"`
	VoiceURL     string `json:"voiceUrl,omitempty"`
}

type PhoneNumbersResponse struct {
	Count        int           `json:"count"`
	PhoneNumbers []PhoneNumber `json:"phoneNumbers"`
}
