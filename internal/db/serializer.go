package db

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

type SessionSerializer interface {
	Serialize(session *Session) ([]byte, error)
	Deserialize(value []byte) (*Session, error)
}

func NewJsonSerializer() *JsonSerializer {
	return &JsonSerializer{
		parserPool: &fastjson.ParserPool{},
	}
}

type JsonSerializer struct {
	parserPool *fastjson.ParserPool
}

// The Session must stay free of tags, and most of its fields are empty until the join,
// so the serialization is written by hand to omit them. Server ids are client-controlled,
// so string values still go through the JSON string encoder.
func (s *JsonSerializer) Serialize(session *Session) ([]byte, error) {
	var builder strings.Builder
	builder.Grow(384)
	builder.WriteString(`{"accessToken":`)
	writeJsonString(&builder, session.AccessToken)
	builder.WriteString(`,"clientToken":`)
	writeJsonString(&builder, session.ClientToken)
	builder.WriteString(`,"accountId":`)
	builder.WriteString(strconv.FormatInt(session.AccountId, 10))
	if session.ProfileUuid != "" {
		builder.WriteString(`,"profileUuid":`)
		writeJsonString(&builder, session.ProfileUuid)
	}

	builder.WriteString(`,"state":`)
	builder.WriteString(strconv.Itoa(int(session.State)))
	if session.ServerId != "" {
		builder.WriteString(`,"serverId":`)
		writeJsonString(&builder, session.ServerId)
		if session.JoinedIp != "" {
			builder.WriteString(`,"joinedIp":`)
			writeJsonString(&builder, session.JoinedIp)
		}

		builder.WriteString(`,"joinedAt":`)
		builder.WriteString(strconv.FormatInt(session.JoinedAt.UnixMilli(), 10))
	}

	builder.WriteString(`,"issuedAt":`)
	builder.WriteString(strconv.FormatInt(session.IssuedAt.UnixMilli(), 10))
	builder.WriteString(`,"expiresAt":`)
	builder.WriteString(strconv.FormatInt(session.ExpiresAt.UnixMilli(), 10))
	builder.WriteString("}")

	return []byte(builder.String()), nil
}

func (s *JsonSerializer) Deserialize(value []byte) (*Session, error) {
	parser := s.parserPool.Get()
	defer s.parserPool.Put(parser)
	v, err := parser.ParseBytes(value)
	if err != nil {
		return nil, err
	}

	session := &Session{
		AccessToken: string(v.GetStringBytes("accessToken")),
		ClientToken: string(v.GetStringBytes("clientToken")),
		AccountId:   v.GetInt64("accountId"),
		ProfileUuid: string(v.GetStringBytes("profileUuid")),
		State:       SessionState(v.GetInt("state")),
		ServerId:    string(v.GetStringBytes("serverId")),
		JoinedIp:    string(v.GetStringBytes("joinedIp")),
		IssuedAt:    time.UnixMilli(v.GetInt64("issuedAt")),
		ExpiresAt:   time.UnixMilli(v.GetInt64("expiresAt")),
	}

	if v.Exists("joinedAt") {
		session.JoinedAt = time.UnixMilli(v.GetInt64("joinedAt"))
	}

	return session, nil
}

func writeJsonString(builder *strings.Builder, value string) {
	// Marshaling a string never fails
	encoded, _ := json.Marshal(value)
	builder.Write(encoded)
}
