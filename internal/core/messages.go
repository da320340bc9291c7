package core

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/dkeye/videochat/internal/domain"
)

type MessageType string

const (
	TypeRegister     MessageType = "register"
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
	TypeEndCall      MessageType = "end-call"
	TypeChat         MessageType = "chat"

	TypeCallEnded MessageType = "call-ended"
	TypeBusy      MessageType = "busy"
	TypeUserList  MessageType = "userlist"
)

var ErrInvalidID = errors.New("id must be a string, number, boolean or null")

// WireID is a user id as sent by clients. Scalars of any JSON kind are
// accepted and coerced to the same text a browser's String() would give.
type WireID string

// undefinedID is what an absent id turns into.
const undefinedID WireID = "undefined"

func (id *WireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ErrInvalidID
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = WireID(s)
	case 't', 'f', 'n':
		*id = WireID(b)
	case '{', '[':
		return ErrInvalidID
	default:
		s, err := numberText(b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		*id = WireID(s)
	}
	return nil
}

func (id WireID) UserID() domain.UserID { return domain.UserID(id) }

func parseID(raw json.RawMessage) (WireID, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return undefinedID, nil
	}
	var id WireID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", err
	}
	return id, nil
}

// displayText reads a free-form display field. Falsy values and
// non-scalars collapse to "", anything else becomes its text form.
func displayText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't':
		return "true"
	case 'f', 'n', '{', '[':
		return ""
	}
	s, err := numberText(raw)
	if err != nil || s == "0" {
		return ""
	}
	return s
}

func numberText(b []byte) (string, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
			return formatNumber(f), nil
		}
		return "", err
	}
	return formatNumber(f), nil
}

// formatNumber renders f the way ECMAScript Number#toString does.
func formatNumber(f float64) string {
	switch {
	case f == 0:
		return "0"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mant, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	n, k := e+1, len(digits)

	switch {
	case k <= n && n <= 21:
		return sign + digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return sign + digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return sign + "0." + strings.Repeat("0", -n) + digits
	}
	out := digits[:1]
	if k > 1 {
		out += "." + digits[1:]
	}
	if e >= 0 {
		return sign + out + "e+" + strconv.Itoa(e)
	}
	return sign + out + "e" + strconv.Itoa(e)
}

// Inbound is the union of every client-to-server message field.
// SDP and Candidate are opaque and forwarded byte for byte.
type Inbound struct {
	Type      MessageType
	UserID    WireID
	Name      string
	Avatar    string
	Flag      string
	To        WireID
	SDP       json.RawMessage
	Candidate json.RawMessage
	Message   string
}

type inboundFrame struct {
	Type      MessageType     `json:"type"`
	UserID    json.RawMessage `json:"userId"`
	Name      json.RawMessage `json:"name"`
	Avatar    json.RawMessage `json:"avatar"`
	Flag      json.RawMessage `json:"flag"`
	To        json.RawMessage `json:"to"`
	SDP       json.RawMessage `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
	Message   json.RawMessage `json:"message"`
}

// ParseInbound decodes a single frame. Only the fields the message type
// uses are interpreted, so unrelated junk never rejects a frame.
func ParseInbound(data []byte) (Inbound, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Inbound{}, fmt.Errorf("parse inbound: %w", err)
	}
	msg := Inbound{Type: f.Type}

	var err error
	switch f.Type {
	case TypeRegister:
		msg.UserID, err = parseID(f.UserID)
		msg.Name = displayText(f.Name)
		msg.Avatar = displayText(f.Avatar)
		msg.Flag = displayText(f.Flag)
	case TypeOffer, TypeAnswer:
		msg.To, err = parseID(f.To)
		msg.SDP = f.SDP
	case TypeICECandidate:
		msg.To, err = parseID(f.To)
		msg.Candidate = f.Candidate
	case TypeEndCall:
		msg.To, err = parseID(f.To)
	case TypeChat:
		msg.To, err = parseID(f.To)
		msg.Message = displayText(f.Message)
	}
	if err != nil {
		return Inbound{}, fmt.Errorf("parse inbound %s: %w", f.Type, err)
	}
	return msg, nil
}

type SessionMessage struct {
	Type MessageType     `json:"type"`
	From domain.UserID   `json:"from"`
	SDP  json.RawMessage `json:"sdp,omitempty"`
}

type CandidateMessage struct {
	Type      MessageType     `json:"type"`
	From      domain.UserID   `json:"from"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type CallEndedMessage struct {
	Type MessageType   `json:"type"`
	From domain.UserID `json:"from"`
}

type ChatMessage struct {
	Type     MessageType   `json:"type"`
	From     domain.UserID `json:"from"`
	FromName string        `json:"fromName"`
	Message  string        `json:"message"`
}

type BusyMessage struct {
	Type   MessageType   `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type UserListMessage struct {
	Type  MessageType       `json:"type"`
	Users []domain.Presence `json:"users"`
}

func NewOffer(from domain.UserID, sdp json.RawMessage) SessionMessage {
	return SessionMessage{Type: TypeOffer, From: from, SDP: sdp}
}

func NewAnswer(from domain.UserID, sdp json.RawMessage) SessionMessage {
	return SessionMessage{Type: TypeAnswer, From: from, SDP: sdp}
}

func NewICECandidate(from domain.UserID, candidate json.RawMessage) CandidateMessage {
	return CandidateMessage{Type: TypeICECandidate, From: from, Candidate: candidate}
}

func NewCallEnded(from domain.UserID) CallEndedMessage {
	return CallEndedMessage{Type: TypeCallEnded, From: from}
}

func NewChat(from domain.User, message string) ChatMessage {
	return ChatMessage{Type: TypeChat, From: from.ID, FromName: from.DisplayName(), Message: message}
}

func NewBusy(target domain.UserID) BusyMessage {
	return BusyMessage{Type: TypeBusy, UserID: target}
}

func NewUserList(users []domain.Presence) UserListMessage {
	if users == nil {
		users = []domain.Presence{}
	}
	return UserListMessage{Type: TypeUserList, Users: users}
}

// Encode marshals an outbound message into a frame.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return Frame(b), nil
}
