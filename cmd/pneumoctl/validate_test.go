package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func checkerboard() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func runRoot(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	doc := writePNG(t, dir, "doc.png", checkerboard())

	out, err := runRoot("validate", doc)
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, doc, results[0]["file"])
	assert.Equal(t, false, results[0]["is_likely_xray"])
	assert.Equal(t, 40.0, results[0]["confidence"])
}

func TestValidateCmd_Strict(t *testing.T) {
	dir := t.TempDir()
	doc := writePNG(t, dir, "doc.png", checkerboard())

	_, err := runRoot("validate", "--strict", doc)

	assert.ErrorContains(t, err, "1 of 1 images rejected")
}

func TestValidateCmd_MissingFile(t *testing.T) {
	_, err := runRoot("validate", filepath.Join(t.TempDir(), "nope.png"))

	assert.Error(t, err)
}
