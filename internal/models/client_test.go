package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, frame string) (Event, error) {
	t.Helper()
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(frame), &msg))
	return msg.Decode()
}

func TestDecode_Valid(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{
			name:  "join",
			frame: `{"type":"join-room","data":{"roomId":"ABC123","username":"Alice"}}`,
			want:  JoinRoom{RoomID: "ABC123", Username: "Alice"},
		},
		{
			name:  "code change with operation",
			frame: `{"type":"code-change","data":{"content":"x","operation":{"type":"insert","position":3,"text":"x"}}}`,
			want: CodeChange{Content: "x", Operation: &Operation{
				Type: OperationInsert, Position: 3, Text: "x",
			}},
		},
		{
			name:  "code change to empty content",
			frame: `{"type":"code-change","data":{"fileName":"a.js","content":""}}`,
			want:  CodeChange{FileName: "a.js"},
		},
		{
			name:  "cursor line/ch",
			frame: `{"type":"cursor-change","data":{"line":4,"ch":7}}`,
			want:  CursorChange{Line: 4, Column: 7},
		},
		{
			name:  "cursor lineNumber/column",
			frame: `{"type":"cursor-change","data":{"lineNumber":2,"column":1,"fileName":"a.js"}}`,
			want:  CursorChange{Line: 2, Column: 1, FileName: "a.js"},
		},
		{
			name:  "cursor negative clamps",
			frame: `{"type":"cursor-change","data":{"line":-3,"ch":-1}}`,
			want:  CursorChange{},
		},
		{
			name:  "switch file bare string",
			frame: `{"type":"switch-file","data":"utils.js"}`,
			want:  SwitchFile{FileName: "utils.js"},
		},
		{
			name:  "delete file object",
			frame: `{"type":"delete-file","data":{"fileName":"utils.js"}}`,
			want:  DeleteFile{FileName: "utils.js"},
		},
		{
			name:  "chat bare string",
			frame: `{"type":"chat-message","data":"hi"}`,
			want:  ChatSend{Message: "hi"},
		},
		{
			name:  "chat object",
			frame: `{"type":"chat-message","data":{"message":"hello"}}`,
			want:  ChatSend{Message: "hello"},
		},
		{
			name:  "replay without payload",
			frame: `{"type":"get-replay"}`,
			want:  GetReplay{},
		},
		{
			name:  "ping",
			frame: `{"type":"ping"}`,
			want:  Ping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(t, tt.frame)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestDecode_ReplayBounds(t *testing.T) {
	got, err := decode(t, `{"type":"get-replay","data":{"fromTimestamp":10,"toTimestamp":20}}`)
	require.NoError(t, err)
	replay := got.(GetReplay)
	require.NotNil(t, replay.From)
	require.NotNil(t, replay.To)
	require.Equal(t, int64(10), *replay.From)
	require.Equal(t, int64(20), *replay.To)
}

func TestDecode_Invalid(t *testing.T) {
	frames := map[string]string{
		"unknown type":          `{"type":"explode"}`,
		"join without room":     `{"type":"join-room","data":{"username":"Alice"}}`,
		"code without content":  `{"type":"code-change","data":{"fileName":"a.js"}}`,
		"negative op position":  `{"type":"code-change","data":{"content":"","operation":{"type":"insert","position":-1}}}`,
		"cursor string coords":  `{"type":"cursor-change","data":{"line":"1","ch":2}}`,
		"cursor without line":   `{"type":"cursor-change","data":{"ch":2}}`,
		"switch empty":          `{"type":"switch-file","data":""}`,
		"chat wrong field type": `{"type":"chat-message","data":{"message":5}}`,
		"create without name":   `{"type":"create-file","data":{"language":"go"}}`,
		"delete missing":        `{"type":"delete-file"}`,
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, frame)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalid), "expected ErrInvalid, got %v", err)
		})
	}
}
