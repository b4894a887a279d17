package api

import (
	"errors"
	"testing"
)

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("eof")

	err := WrapKind("api.op", ErrBadRequest, cause)
	if !errors.Is(err, ErrBadRequest) || !errors.Is(err, cause) {
		t.Fatalf("wrapped error should match kind and cause: %v", err)
	}
	if got := err.Error(); got != "api.op: bad request: eof" {
		t.Errorf("unexpected message %q", got)
	}

	if got := NewKind("api.op", ErrBackpressure).Error(); got != "api.op: backpressure" {
		t.Errorf("unexpected message %q", got)
	}
	if Wrap("api.op", nil) != nil {
		t.Error("wrapping nil should stay nil")
	}
	if !errors.Is(Wrap("api.op", cause), cause) {
		t.Error("wrap should keep the cause")
	}
}

func TestRenderPayloadPixels(t *testing.T) {
	tests := []struct {
		name    string
		payload renderPayload
		want    int
		wantErr bool
	}{
		{name: "raw rgba", payload: renderPayload{RenderRGBA: "AAAAAA=="}, want: 4},
		{name: "empty", payload: renderPayload{}, wantErr: true},
		{name: "both", payload: renderPayload{RenderRGBA: "AAAA", RenderPNG: "AAAA"}, wantErr: true},
		{name: "bad png", payload: renderPayload{RenderPNG: "data:image/png;base64,AAAA"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.payload.pixels()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.want {
				t.Errorf("got %d bytes, want %d", len(got), tt.want)
			}
		})
	}
}
