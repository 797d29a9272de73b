package ffmpeg

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/mathreel/internal/slideplan"
)

// Chapter is a titled span of the final video.
type Chapter struct {
	Title string
	Start time.Duration
	End   time.Duration
}

// BuildChapters opens a chapter at every slide that starts a node; continued slides
// extend the chapter before them. durations is indexed like slides.
func BuildChapters(slides []slideplan.Slide, durations []time.Duration) []Chapter {
	var chapters []Chapter
	var at time.Duration
	for i, s := range slides {
		var d time.Duration
		if i < len(durations) {
			d = durations[i]
		}
		if s.Continued && len(chapters) > 0 {
			chapters[len(chapters)-1].End = at + d
		} else {
			chapters = append(chapters, Chapter{Title: chapterTitle(s), Start: at, End: at + d})
		}
		at += d
	}
	return chapters
}

func chapterTitle(s slideplan.Slide) string {
	if len(s.ChapterPath) > 0 {
		return strings.Join(s.ChapterPath, " / ")
	}
	return s.Title
}

var metaEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, `;`, `\;`, `#`, `\#`, "\n", "\\\n")

// Metadata renders an FFmpeg metadata file with millisecond chapter marks.
func Metadata(title string, chapters []Chapter) string {
	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")
	if title != "" {
		fmt.Fprintf(&b, "title=%s\n", metaEscaper.Replace(title))
	}
	for _, c := range chapters {
		b.WriteString("[CHAPTER]\nTIMEBASE=1/1000\n")
		fmt.Fprintf(&b, "START=%d\nEND=%d\n", c.Start.Milliseconds(), c.End.Milliseconds())
		fmt.Fprintf(&b, "title=%s\n", metaEscaper.Replace(c.Title))
	}
	return b.String()
}
