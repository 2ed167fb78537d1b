package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazysync/internal/common"
)

func TestEncodeDecodeRequest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(&Request{Path: "/home/user"}))

	var req Request
	require.NoError(t, NewDecoder(&buf).Decode(&req))
	assert.Equal(t, "/home/user", req.Path)
}

func TestEncodeDecodeResponse(t *testing.T) {
	t.Parallel()

	resp := &Response{
		Path: "/a",
		Entries: []Entry{
			{Name: "f.txt", Type: TypeFile, Size: 10, Permissions: "-rw-r--r--", Modified: "2025-08-01 12:00:00"},
			{Name: "sub", Type: TypeDir, IsDir: true, Permissions: "drwxr-xr-x", Modified: "2025-08-01 12:00:00"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(resp))

	var got Response
	require.NoError(t, NewDecoder(&buf).Decode(&got))
	assert.Equal(t, resp.Path, got.Path)
	assert.Equal(t, resp.Entries, got.Entries)
	assert.Nil(t, got.Err)
}

func TestEncodeDecodeErrorResponse(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(ErrorResponse("/missing", CodeNotFound, "")))

	var got Response
	require.NoError(t, NewDecoder(&buf).Decode(&got))
	require.NotNil(t, got.Err)
	assert.Equal(t, CodeNotFound, got.Err.Code)
	assert.ErrorIs(t, got.Failure(), common.ErrNotFound)
}

func TestPipelinedFrames(t *testing.T) {
	t.Parallel()

	// Several back-to-back frames on one stream must decode in order.
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	paths := []string{"/a", "/b with space", "/weird\nname", "/c"}
	for _, p := range paths {
		require.NoError(t, enc.Encode(&Request{Path: p}))
	}

	dec := NewDecoder(&buf)
	for _, want := range paths {
		var req Request
		require.NoError(t, dec.Decode(&req))
		assert.Equal(t, want, req.Path)
	}

	var req Request
	assert.Equal(t, io.EOF, dec.Decode(&req))
}

func TestDecodeTruncatedFrame(t *testing.T) {
	t.Parallel()

	frame, err := Marshal(&Request{Path: "/home"})
	require.NoError(t, err)

	t.Run("truncated body", func(t *testing.T) {
		t.Parallel()
		var resp Request
		err := NewDecoder(bytes.NewReader(frame[:len(frame)-3])).Decode(&resp)
		assert.ErrorIs(t, err, common.ErrMalformed)
	})

	t.Run("truncated header", func(t *testing.T) {
		t.Parallel()
		var resp Request
		err := NewDecoder(bytes.NewReader(frame[:2])).Decode(&resp)
		assert.ErrorIs(t, err, common.ErrMalformed)
	})

	t.Run("clean EOF at frame boundary", func(t *testing.T) {
		t.Parallel()
		var resp Request
		assert.Equal(t, io.EOF, NewDecoder(bytes.NewReader(nil)).Decode(&resp))
	})
}

func TestDecodeMalformedBody(t *testing.T) {
	t.Parallel()

	body := []byte("{not json")
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	var req Request
	err := NewDecoder(bytes.NewReader(frame)).Decode(&req)
	assert.ErrorIs(t, err, common.ErrMalformed)
}

func TestDecodeOversizeFrame(t *testing.T) {
	t.Parallel()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)

	var req Request
	err := NewDecoder(bytes.NewReader(header[:])).Decode(&req)
	assert.ErrorIs(t, err, common.ErrMalformed)
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	frame, err := Marshal(&Request{Path: "/x"})
	require.NoError(t, err)

	var req Request
	require.NoError(t, Unmarshal(frame, &req))
	assert.Equal(t, "/x", req.Path)

	assert.ErrorIs(t, Unmarshal(frame[:len(frame)-1], &req), common.ErrMalformed)
	assert.ErrorIs(t, Unmarshal([]byte{0, 0}, &req), common.ErrMalformed)
}

func TestResponseFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *Response
		want error
	}{
		{"success", &Response{Path: "/a"}, nil},
		{"not_found", ErrorResponse("/a", CodeNotFound, ""), common.ErrNotFound},
		{"permission_denied", ErrorResponse("/a", CodePermissionDenied, ""), common.ErrPermissionDenied},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.resp.Failure()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}

	t.Run("other carries message verbatim", func(t *testing.T) {
		t.Parallel()
		err := ErrorResponse("/a", CodeOther, "disk exploded").Failure()
		var remote *common.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "disk exploded", remote.Message)
	})
}
