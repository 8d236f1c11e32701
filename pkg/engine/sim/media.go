package sim

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/flixor/mediabridge/pkg/engine"
)

// Scheme of synthetic media, e.g. sim://clip?duration=5s&w=640&h=360&fail=3s.
const Scheme = "sim"

const (
	defaultDuration = time.Minute
	defaultWidth    = 640
	defaultHeight   = 360
)

var extensions = map[string]struct{}{
	".mp4": {}, ".m4v": {}, ".mkv": {}, ".webm": {}, ".mov": {}, ".avi": {},
	".ts": {}, ".mpg": {}, ".flv": {}, ".mp3": {}, ".flac": {}, ".ogg": {},
	".wav": {}, ".m4a": {}, ".opus": {},
}

// media is what a loaded URI plays.
type media struct {
	uri      string
	duration time.Duration
	width    int
	height   int
	// failAt is the position of an injected playback error, 0 for none.
	failAt time.Duration
	audio  bool
}

// probe resolves uri into media the way a demuxer would:
// missing files fail with LoadingFailed, unknown containers with UnknownFormat.
func probe(uri string) (*media, engine.Code) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, engine.CodeLoadingFailed
	}
	switch u.Scheme {
	case Scheme:
		return synthetic(uri, u)
	case "file":
		return local(uri, u.Path)
	case "":
		return local(uri, uri)
	default:
		return nil, engine.CodeLoadingFailed
	}
}

func local(uri, path string) (*media, engine.Code) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return nil, engine.CodeLoadingFailed
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := extensions[ext]; !ok {
		return nil, engine.CodeUnknownFormat
	}
	if fi.Size() == 0 {
		return nil, engine.CodeNothingToPlay
	}
	m := media{uri: uri, duration: defaultDuration, width: defaultWidth, height: defaultHeight}
	switch ext {
	case ".mp3", ".flac", ".ogg", ".wav", ".m4a", ".opus":
		m.audio = true
		m.width, m.height = 0, 0
	}
	return &m, engine.CodeSuccess
}

func synthetic(uri string, u *url.URL) (*media, engine.Code) {
	if u.Host == "unsupported" {
		return nil, engine.CodeUnknownFormat
	}
	m := media{uri: uri, duration: defaultDuration, width: defaultWidth, height: defaultHeight}
	q := u.Query()
	if v := q.Get("duration"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, engine.CodeLoadingFailed
		}
		m.duration = d
	}
	if v := q.Get("fail"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, engine.CodeLoadingFailed
		}
		m.failAt = d
	}
	for key, dst := range map[string]*int{"w": &m.width, "h": &m.height} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, engine.CodeLoadingFailed
			}
			*dst = n
		}
	}
	m.audio = m.width == 0 || m.height == 0
	return &m, engine.CodeSuccess
}
