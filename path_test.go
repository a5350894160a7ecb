package trfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "car.png", "car.png"},
		{"nested", "images/car.png", "images/car.png"},
		{"backslashes", `images\car.png`, "images/car.png"},
		{"mixed separators", `images\sub/car.png`, "images/sub/car.png"},
		{"leading slash", "/images/car.png", "images/car.png"},
		{"trailing slash", "images/", "images"},
		{"double slashes", "images//car.png", "images/car.png"},
		{"mixed everywhere", `\\images//\car.png/`, "images/car.png"},
		{"only separators", `/\/`, ""},
		{"empty", "", ""},
		{"case preserved", "Images/Car.PNG", "Images/Car.PNG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.input))
		})
	}
}

func TestValidPath(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidPath("audio/theme_main.ogg"))
	require.NoError(t, ValidPath(`C\Windows\Fonts`))
	require.ErrorIs(t, ValidPath("level1.map"), ErrInvalidPathCharacter)
	require.ErrorIs(t, ValidPath("my file.txt"), ErrInvalidPathCharacter)
	require.ErrorIs(t, ValidPath("/"), ErrInvalidPathCharacter)
}
