package url2pdf

import (
	"errors"
	"testing"
)

func TestPageSettings_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		page    PageSettings
		wantErr error
	}{
		{"defaults", DefaultPageSettings(), nil},
		{"uppercase", PageSettings{Size: "LETTER", Orientation: "Landscape", Margin: 1}, nil},
		{"zero margin", PageSettings{Size: PageSizeLegal, Orientation: OrientationPortrait}, nil},
		{"unknown size", PageSettings{Size: "a3", Orientation: OrientationPortrait}, ErrInvalidPageSize},
		{"unknown orientation", PageSettings{Size: PageSizeA4, Orientation: "diagonal"}, ErrInvalidOrientation},
		{"negative margin", PageSettings{Size: PageSizeA4, Orientation: OrientationPortrait, Margin: -0.1}, ErrInvalidMargin},
		{"huge margin", PageSettings{Size: PageSizeA4, Orientation: OrientationPortrait, Margin: MaxMargin + 1}, ErrInvalidMargin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.page.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPageSettings_Dimensions(t *testing.T) {
	t.Parallel()

	w, h := PageSettings{Size: PageSizeLetter, Orientation: OrientationPortrait}.Dimensions()
	if w != 8.5 || h != 11 {
		t.Errorf("letter portrait = %vx%v, want 8.5x11", w, h)
	}

	w, h = PageSettings{Size: PageSizeLetter, Orientation: OrientationLandscape}.Dimensions()
	if w != 11 || h != 8.5 {
		t.Errorf("letter landscape = %vx%v, want 11x8.5", w, h)
	}
}
