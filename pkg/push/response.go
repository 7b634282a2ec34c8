package push

// Reason classifies why a relay request failed.
type Reason int

const (
	reasonNone Reason = iota
	InvalidPayload
	BadKey
	UnknownError
	MissingKey
	InvalidDeviceID
	UpdatedDeviceID
	InternalServerError
)

var reasonText = map[Reason]string{
	InvalidPayload:      "Invalid Payload",
	BadKey:              "Bad Key",
	UnknownError:        "Unknown Error",
	MissingKey:          "Missing Key",
	InvalidDeviceID:     "Invalid Device ID",
	UpdatedDeviceID:     "Updated Device ID",
	InternalServerError: "Internal Server Error",
}

// String returns the wire text for the reason.
func (r Reason) String() string {
	if s, ok := reasonText[r]; ok {
		return s
	}
	return "OK"
}

// Response is the normalized outcome of relaying one request.
// A zero Response is a success.
type Response struct {
	Reason  Reason
	Details any
}

// OK returns the success response.
func OK() Response {
	return Response{}
}

// Err returns a failure response with optional details.
func Err(reason Reason, details any) Response {
	return Response{Reason: reason, Details: details}
}

// IsOK reports whether the response is a success.
func (r Response) IsOK() bool {
	return r.Reason == reasonNone
}
