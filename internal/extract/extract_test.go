package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/opportunity-crawler/internal/config"
)

const samplePage = `<!doctype html>
<html>
<head><title>Cycling Weekly</title><style>body { color: red }</style></head>
<body>
  <script>var tracking = "secret";</script>
  <noscript>Enable JavaScript</noscript>
  <h1>Best   gravel bikes</h1>
  <p>Ride <b>further</b>
     with less effort.</p>
  <!-- hidden comment -->
  <template><p>never shown</p></template>
</body>
</html>`

func TestTextStripsNonContent(t *testing.T) {
	t.Parallel()

	got, err := Text([]byte(samplePage))
	require.NoError(t, err)
	require.Equal(t, "Best gravel bikes Ride further with less effort.", got)
	for _, banned := range []string{"tracking", "Enable JavaScript", "color", "Cycling Weekly", "never shown", "comment"} {
		require.NotContains(t, got, banned)
	}
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()

	e, err := New(ModeText, 0)
	require.NoError(t, err)
	_, err = e.Extract("https://a.example", []byte("<html><body><script>x()</script></body></html>"))
	require.ErrorIs(t, err, ErrEmptyContent)
}

func TestExtractTruncates(t *testing.T) {
	t.Parallel()

	e, err := New(ModeText, 10)
	require.NoError(t, err)
	got, err := e.Extract("", []byte("<p>"+strings.Repeat("é", 25)+"</p>"))
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("é", 10), got)
}

func TestExtractDefaultConfigKeepsFullText(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	e, err := New(Mode(cfg.Fetcher.Extract), cfg.Fetcher.MaxTextChars)
	require.NoError(t, err)

	long := strings.Repeat("gravel ", 8000)
	got, err := e.Extract("https://a.example", []byte("<html><body><p>"+long+"</p></body></html>"))
	require.NoError(t, err)
	require.Equal(t, strings.TrimSpace(long), got)
}

func TestReadabilityModeFallsBackToText(t *testing.T) {
	t.Parallel()

	e, err := New(ModeReadability, 0)
	require.NoError(t, err)
	got, err := e.Extract("https://a.example/page", []byte(samplePage))
	require.NoError(t, err)
	require.Contains(t, got, "gravel bikes")
	require.NotContains(t, got, "tracking")
}

func TestNewRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := New("markdown", 0)
	require.Error(t, err)

	e, err := New("", 0)
	require.NoError(t, err)
	require.Equal(t, ModeText, e.mode)
}

func TestTruncateAndCollapse(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", Truncate("abc", 0))
	require.Equal(t, "abc", Truncate("abc", 3))
	require.Equal(t, "ab", Truncate("abc", 2))
	require.Equal(t, "a b c", Collapse("  a\n\tb   c "))
	require.Equal(t, "", Collapse(" \n "))
}
