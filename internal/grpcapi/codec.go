package grpcapi

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
)

// Item is the wire form of one gallery entry.
type Item struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	MIMEType  string    `json:"mime_type"`
}

// Saved is the wire form of a successful capture.
type Saved struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

func EncodeRequest(req capture.Request) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"token":   structpb.NewStringValue(req.Token),
		"width":   structpb.NewNumberValue(float64(req.Width)),
		"height":  structpb.NewNumberValue(float64(req.Height)),
		"density": structpb.NewNumberValue(float64(req.Density)),
	}}
}

// DecodeRequest reads a capture request. Missing fields stay zero; a
// wrongly typed field is an InvalidArgument error.
func DecodeRequest(s *structpb.Struct) (capture.Request, error) {
	var req capture.Request
	if s == nil {
		return req, nil
	}
	f := s.GetFields()
	var err error
	if req.Token, err = stringField(f, "token"); err != nil {
		return req, err
	}
	if req.Width, err = intField(f, "width"); err != nil {
		return req, err
	}
	if req.Height, err = intField(f, "height"); err != nil {
		return req, err
	}
	if req.Density, err = intField(f, "density"); err != nil {
		return req, err
	}
	return req, nil
}

func EncodeSaved(v Saved) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":   structpb.NewStringValue(v.ID),
		"name": structpb.NewStringValue(v.Name),
		"path": structpb.NewStringValue(v.Path),
	}}
}

func DecodeSaved(s *structpb.Struct) Saved {
	f := s.GetFields()
	return Saved{
		ID:   f["id"].GetStringValue(),
		Name: f["name"].GetStringValue(),
		Path: f["path"].GetStringValue(),
	}
}

func EncodeItem(it gallery.SavedImage) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"name":       structpb.NewStringValue(it.Name),
		"path":       structpb.NewStringValue(it.Path),
		"size":       structpb.NewNumberValue(float64(it.Size)),
		"created_at": structpb.NewStringValue(it.CreatedAt.UTC().Format(time.RFC3339Nano)),
		"width":      structpb.NewNumberValue(float64(it.Width)),
		"height":     structpb.NewNumberValue(float64(it.Height)),
		"mime_type":  structpb.NewStringValue(it.MIMEType()),
	}})
}

func DecodeItem(v *structpb.Value) (Item, error) {
	s := v.GetStructValue()
	if s == nil {
		return Item{}, apperrors.New(apperrors.InvalidArgument, "list item is not a struct")
	}
	f := s.GetFields()
	it := Item{
		Name:     f["name"].GetStringValue(),
		Path:     f["path"].GetStringValue(),
		Size:     int64(f["size"].GetNumberValue()),
		Width:    int(f["width"].GetNumberValue()),
		Height:   int(f["height"].GetNumberValue()),
		MIMEType: f["mime_type"].GetStringValue(),
	}
	if ts := f["created_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Item{}, apperrors.Wrapf(err, apperrors.InvalidArgument, "bad created_at %q", ts)
		}
		it.CreatedAt = t
	}
	return it, nil
}

func EncodeList(l gallery.List) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(l))
	for _, it := range l {
		values = append(values, EncodeItem(it))
	}
	return &structpb.ListValue{Values: values}
}

func DecodeList(lv *structpb.ListValue) ([]Item, error) {
	items := make([]Item, 0, len(lv.GetValues()))
	for _, v := range lv.GetValues() {
		it, err := DecodeItem(v)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func stringField(f map[string]*structpb.Value, key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", nil
	}
	if _, isStr := v.GetKind().(*structpb.Value_StringValue); !isStr {
		return "", apperrors.Newf(apperrors.InvalidArgument, "%s must be a string", key)
	}
	return v.GetStringValue(), nil
}

func intField(f map[string]*structpb.Value, key string) (int, error) {
	v, ok := f[key]
	if !ok {
		return 0, nil
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return 0, apperrors.Newf(apperrors.InvalidArgument, "%s must be a number", key)
	}
	n := v.GetNumberValue()
	if n < 0 || n != float64(int(n)) {
		return 0, apperrors.New(apperrors.InvalidArgument, fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return int(n), nil
}
