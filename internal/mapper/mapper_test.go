package mapper

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitPortraitDisplayLandscapeImage(t *testing.T) {
	tf, ok := Fit(1920, 1080, 0, 1080, 1920)
	require.True(t, ok)

	// image aspect (16:9) is wider than the display aspect, so the height bounds the scale
	assert.InDelta(t, 1920.0/1080.0, tf.Scale, 1e-9)
	assert.InDelta(t, 0, tf.OffsetY, 1e-9)
	assert.NotZero(t, tf.OffsetX)

	r := tf.Apply(image.Rect(0, 0, 1920, 1080))
	assert.InDelta(t, 0, r.Top, 1e-9)
	assert.InDelta(t, 1920, r.Bottom, 1e-9)
	// centred horizontally
	assert.InDelta(t, 1080.0/2, (r.Left+r.Right)/2, 1e-6)
}

func TestFitWideDisplay(t *testing.T) {
	tf, ok := Fit(640, 480, 0, 1920, 1080)
	require.True(t, ok)

	// display is wider than 4:3, so width bounds the scale
	assert.InDelta(t, 3.0, tf.Scale, 1e-9)
	assert.InDelta(t, 0, tf.OffsetX, 1e-9)
	assert.InDelta(t, (1080-480*3)/2.0, tf.OffsetY, 1e-9)
}

func TestFitRotationSwap(t *testing.T) {
	tests := []struct {
		rotation int
		w, h     int
	}{
		{90, 1920, 1080},
		{270, 1920, 1080},
	}
	want, ok := Fit(1080, 1920, 0, 1080, 2340)
	require.True(t, ok)

	for _, tt := range tests {
		got, ok := Fit(tt.w, tt.h, tt.rotation, 1080, 2340)
		require.True(t, ok)
		assert.Equal(t, want, got, "rotation %d", tt.rotation)
	}

	upright, _ := Fit(1920, 1080, 180, 1080, 2340)
	plain, _ := Fit(1920, 1080, 0, 1080, 2340)
	assert.Equal(t, plain, upright)
}

func TestFitZeroDimensions(t *testing.T) {
	for _, dims := range [][4]int{
		{0, 1080, 1080, 1920},
		{1920, 0, 1080, 1920},
		{1920, 1080, 0, 1920},
		{1920, 1080, 1080, 0},
	} {
		_, ok := Fit(dims[0], dims[1], 0, dims[2], dims[3])
		assert.False(t, ok, "%v", dims)
	}
}

func TestMapperRecomputesOnlyOnChange(t *testing.T) {
	m, err := New(1080, 1920)
	require.NoError(t, err)
	assert.Equal(t, Identity, m.Transform())
	assert.Zero(t, m.Computations())

	require.NoError(t, m.SetImage(1920, 1080, 0))
	assert.Equal(t, 1, m.Computations())

	for i := 0; i < 10; i++ {
		require.NoError(t, m.SetImage(1920, 1080, 0))
		require.NoError(t, m.SetDisplaySize(1080, 1920))
	}
	assert.Equal(t, 1, m.Computations())

	require.NoError(t, m.SetImage(1920, 1080, 90))
	assert.Equal(t, 2, m.Computations())
}

func TestMapperKeepsTransformOnZeroSize(t *testing.T) {
	m, err := New(1080, 1920)
	require.NoError(t, err)
	require.NoError(t, m.SetImage(1920, 1080, 0))
	before := m.Transform()

	// layout not settled yet
	require.NoError(t, m.SetDisplaySize(0, 0))
	assert.Equal(t, before, m.Transform())

	require.NoError(t, m.SetImage(0, 0, 0))
	assert.Equal(t, before, m.Transform())
}

func TestMapperRejectsContractViolations(t *testing.T) {
	m, err := New(100, 100)
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetImage(-1, 10, 0), ErrInvalidDimensions)
	assert.ErrorIs(t, m.SetDisplaySize(10, -5), ErrInvalidDimensions)
	assert.ErrorIs(t, m.SetImage(10, 10, 45), ErrInvalidRotation)

	_, err = New(-1, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestSourceToDisplayMatchesApply(t *testing.T) {
	tests := []struct {
		name     string
		rotation int
		// sensor point and the upright point it should land on
		sensor  [2]float64
		upright [2]float64
	}{
		{"none", 0, [2]float64{10, 20}, [2]float64{10, 20}},
		{"quarter", 90, [2]float64{10, 20}, [2]float64{480 - 20, 10}},
		{"half", 180, [2]float64{10, 20}, [2]float64{640 - 10, 480 - 20}},
		{"three quarters", 270, [2]float64{10, 20}, [2]float64{20, 640 - 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf, ok := Fit(640, 480, tt.rotation, 800, 800)
			require.True(t, ok)
			m := tf.SourceToDisplay(640, 480, tt.rotation)

			x := m[0]*tt.sensor[0] + m[1]*tt.sensor[1] + m[2]
			y := m[3]*tt.sensor[0] + m[4]*tt.sensor[1] + m[5]

			wantX := tt.upright[0]*tf.Scale + tf.OffsetX
			wantY := tt.upright[1]*tf.Scale + tf.OffsetY
			assert.InDelta(t, wantX, x, 1e-9)
			assert.InDelta(t, wantY, y, 1e-9)
		})
	}
}

func TestRectIoU(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	assert.InDelta(t, 1.0, a.IoU(a), 1e-12)
	assert.InDelta(t, 0.0, a.IoU(Rect{20, 20, 30, 30}), 1e-12)
	// half overlap: 50 / 150
	assert.InDelta(t, 1.0/3.0, a.IoU(Rect{5, 0, 15, 10}), 1e-12)
	assert.Zero(t, Rect{}.IoU(Rect{}))
}

func TestRectBounds(t *testing.T) {
	r := Rect{Left: 1.2, Top: -0.5, Right: 10.1, Bottom: 3}
	assert.Equal(t, image.Rect(1, -1, 11, 3), r.Bounds())
}
