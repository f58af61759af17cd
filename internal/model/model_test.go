package model

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	score  float32
	err    error
	closed bool
}

func (f *fakeClassifier) Infer(ctx context.Context, img image.Image) (float32, error) {
	return f.score, f.err
}

func (f *fakeClassifier) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPredict(t *testing.T) {
	tests := []struct {
		name       string
		score      float32
		wantLabel  string
		wantConf   float64
		wantRaw float64
	}{
		{"confident pneumonia", 0.9, LabelPneumonia, 0.9, 0.9},
		{"confident normal", 0.1, LabelNormal, 0.9, 0.1},
		{"exactly threshold is normal", 0.5, LabelNormal, 0.5, 0.5},
		{"just over threshold", 0.5001, LabelPneumonia, 0.5001, 0.5001},
		{"zero", 0, LabelNormal, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Predict(context.Background(), &fakeClassifier{score: tt.score}, image.NewGray(image.Rect(0, 0, 1, 1)), 0.5)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLabel, p.Prediction)
			assert.InDelta(t, tt.wantConf, p.Confidence, 1e-4)
			assert.InDelta(t, tt.wantRaw, p.RawScore, 1e-4)
			assert.GreaterOrEqual(t, p.Confidence, 0.5)
		})
	}
}

func TestPredict_Rounding(t *testing.T) {
	p, err := Predict(context.Background(), &fakeClassifier{score: 0.123456}, image.NewGray(image.Rect(0, 0, 1, 1)), 0.5)
	require.NoError(t, err)

	assert.Equal(t, 0.1235, p.RawScore)
	assert.Equal(t, 0.8765, p.Confidence)
}

func TestPredict_InferError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Predict(context.Background(), &fakeClassifier{err: boom}, image.NewGray(image.Rect(0, 0, 1, 1)), 0.5)

	assert.ErrorIs(t, err, boom)
}

func TestPreprocessImage_Layouts(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}

	nhwc, err := preprocessImage(img, 2, LayoutNHWC)
	require.NoError(t, err)
	require.Len(t, nhwc, 12)
	assert.InDelta(t, 1.0, nhwc[0], 1e-6)
	assert.InDelta(t, 0.0, nhwc[1], 1e-6)
	assert.InDelta(t, 0.2, nhwc[2], 1e-6)
	assert.InDelta(t, 1.0, nhwc[3], 1e-6)

	nchw, err := preprocessImage(img, 2, LayoutNCHW)
	require.NoError(t, err)
	require.Len(t, nchw, 12)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, nchw[i], 1e-6)
		assert.InDelta(t, 0.0, nchw[4+i], 1e-6)
		assert.InDelta(t, 0.2, nchw[8+i], 1e-6)
	}

	_, err = preprocessImage(img, 2, "CHW")
	assert.ErrorIs(t, err, ErrUnsupportedLayout)

	_, err = preprocessImage(img, 0, LayoutNHWC)
	assert.Error(t, err)
}

func TestPreprocessImage_TranslucentKeepsColour(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
		}
	}

	data, err := preprocessImage(img, 2, LayoutNHWC)
	require.NoError(t, err)

	// Premultiplying would roughly halve every channel.
	for i := 0; i < len(data); i += 3 {
		assert.InDelta(t, 200.0/255, data[i], 2.0/255)
		assert.InDelta(t, 100.0/255, data[i+1], 2.0/255)
		assert.InDelta(t, 50.0/255, data[i+2], 2.0/255)
	}
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()

	md, err := LoadMetadata(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMetadata(), md)
	assert.Equal(t, 150*150*3, md.InputSize())

	path := filepath.Join(dir, "model_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input_shape":[1,3,224,224],"image_size":224,"layout":"NCHW","input_name":"x"}`), 0o644))

	md, err = LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 224, 224}, md.InputShape)
	assert.Equal(t, 224, md.ImageSize)
	assert.Equal(t, LayoutNCHW, md.Layout)
	assert.Equal(t, "x", md.InputName)
	assert.Equal(t, "output", md.OutputName)
	assert.Equal(t, []string{LabelNormal, LabelPneumonia}, md.Classes)

	require.NoError(t, os.WriteFile(path, []byte(`{"layout":"HWC"}`), 0o644))
	_, err = LoadMetadata(path)
	assert.ErrorIs(t, err, ErrUnsupportedLayout)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadMetadata(path)
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	fc := &fakeClassifier{score: 0.7}
	h := NewHandle(fc, DefaultMetadata(), "model.onnx")

	c, err := h.Classifier()
	require.NoError(t, err)
	assert.Same(t, fc, c)
	assert.True(t, h.Loaded())

	require.NoError(t, h.Close())
	assert.True(t, fc.closed)
}

func TestFailedHandle(t *testing.T) {
	cause := errors.New("no such file")
	h := FailedHandle(cause, DefaultMetadata(), "model.onnx")

	_, err := h.Classifier()
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	assert.ErrorIs(t, err, cause)
	assert.False(t, h.Loaded())
	assert.NoError(t, h.Close())

	var nilHandle *Handle
	_, err = nilHandle.Classifier()
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestOpen_MissingModelWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_model.onnx")

	h := Open(context.Background(), Options{ModelPath: path}, discardLogger())

	assert.False(t, h.Loaded())
	_, err := h.Classifier()
	assert.ErrorIs(t, err, ErrNoModelSource)
	assert.Equal(t, path, h.ModelPath)
}

func TestEnsureModel_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))

	err := NewDownloader(discardLogger()).EnsureModel(context.Background(), path, "http://127.0.0.1:0/never")

	assert.NoError(t, err)
}

func TestEnsureModel_Downloads(t *testing.T) {
	body := strings.Repeat("w", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "model.onnx")

	err := NewDownloader(discardLogger()).EnsureModel(context.Background(), path, srv.URL)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be gone")
}

func TestEnsureModel_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			return
		}
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownloader(discardLogger())
	dir := t.TempDir()

	err := d.EnsureModel(context.Background(), filepath.Join(dir, "a.onnx"), "")
	assert.ErrorIs(t, err, ErrNoModelSource)

	err = d.EnsureModel(context.Background(), filepath.Join(dir, "b.onnx"), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
	assert.NoFileExists(t, filepath.Join(dir, "b.onnx"))

	err = d.EnsureModel(context.Background(), filepath.Join(dir, "c.onnx"), srv.URL+"/empty")
	assert.ErrorContains(t, err, "empty")
	assert.NoFileExists(t, filepath.Join(dir, "c.onnx"))
}

func TestDownloadURLs(t *testing.T) {
	assert.Equal(t, "https://drive.google.com/uc?export=download&id=abc", GoogleDriveURL("abc"))
	assert.Equal(t, "https://huggingface.co/me/pneumo/resolve/main/final_model.onnx", HuggingFaceURL("me/pneumo", "final_model.onnx"))
}
