package imagecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRawTimestampAcceptedForms(t *testing.T) {
	want := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

	cases := []string{
		"2026-02-01T08:30:00Z",
		"2026-02-01T08:30:00",
		"2026-02-01 08:30:00",
		"2026-02-01T10:30:00+02:00",
		"2026-02-01T03:30:00-05:00",
	}
	for _, raw := range cases {
		got, err := RawTimestamp(raw).UTC()
		require.NoError(t, err, raw)
		require.True(t, got.Equal(want), "%s normalized to %s", raw, got)
		require.Equal(t, time.UTC, got.Location())
	}
}

func TestRawTimestampPreservesSubsecondPrecision(t *testing.T) {
	got, err := RawTimestamp("2026-02-01T08:30:00.123456Z").UTC()
	require.NoError(t, err)
	require.Equal(t, 123456000, got.Nanosecond())
}

func TestRawTimestampRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-time", "2026-13-45T99:99:99Z"} {
		_, err := RawTimestamp(raw).UTC()
		require.Error(t, err, "%q should not parse", raw)
	}
}

func TestNativeTimestampStripsZone(t *testing.T) {
	zoned := time.Date(2026, 2, 1, 10, 30, 0, 0, time.FixedZone("EET", 2*3600))

	got, err := NativeTimestamp(zoned).UTC()
	require.NoError(t, err)
	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.Equal(time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)))
}

func TestNativeTimestampRejectsZero(t *testing.T) {
	_, err := NativeTimestamp(time.Time{}).UTC()
	require.Error(t, err)
}
