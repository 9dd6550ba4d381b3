package player

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"math/big"
)

const chunkSize = 12

type PageData struct {
	Title    string
	EmbedURL string
	Trusted  bool
	UserID   string
}

type pageView struct {
	Title     string
	Chunks    []string
	Watermark string
	VarChunks template.JS
	VarFrame  template.JS
	FrameID   string
}

var pageTmpl = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="referrer" content="no-referrer">
<title>{{.Title}}</title>
<style>
html,body{margin:0;height:100%;background:#000;overflow:hidden;user-select:none}
iframe{border:0;width:100%;height:100%}
.wm{position:fixed;inset:0;pointer-events:none;display:flex;align-items:center;justify-content:center;
color:rgba(255,255,255,.12);font:24px sans-serif;transform:rotate(-25deg)}
</style>
</head>
<body oncontextmenu="return false">
<iframe id="{{.FrameID}}" allow="autoplay; encrypted-media; fullscreen" allowfullscreen></iframe>
{{if .Watermark}}<div class="wm">{{.Watermark}}</div>{{end}}
<script>
(function(){
var {{.VarChunks}} = [{{range $i, $c := .Chunks}}{{if $i}},{{end}}{{$c}}{{end}}];
var {{.VarFrame}} = document.getElementById({{.FrameID}});
{{.VarFrame}}.src = atob({{.VarChunks}}.join(""));
{{.VarChunks}}.length = 0;
document.addEventListener("keydown", function(e){
  if (e.key === "F12" || (e.ctrlKey && e.shiftKey && (e.key === "I" || e.key === "J")) || (e.ctrlKey && e.key === "u")) {
    e.preventDefault();
  }
});
})();
</script>
</body>
</html>
`))

// Render пишет страницу плеера. Исходный URL в HTML не попадает:
// base64 режется на куски и собирается на клиенте.
func Render(w io.Writer, data PageData) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(data.EmbedURL))

	view := pageView{
		Title:     data.Title,
		Chunks:    split(encoded, chunkSize),
		VarChunks: template.JS(randomIdent()),
		VarFrame:  template.JS(randomIdent()),
		FrameID:   randomIdent(),
	}
	if !data.Trusted {
		view.Watermark = data.UserID
	}

	if err := pageTmpl.Execute(w, view); err != nil {
		return fmt.Errorf("render player: %w", err)
	}
	return nil
}

func split(s string, n int) []string {
	chunks := make([]string, 0, len(s)/n+1)
	for len(s) > n {
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

const identLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randomIdent - идентификатор JS вида _xXxXxXxX (только буквы, безопасно для template.JS).
func randomIdent() string {
	b := make([]byte, 9)
	b[0] = '_'
	max := big.NewInt(int64(len(identLetters)))
	for i := 1; i < len(b); i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = 'v'
			continue
		}
		b[i] = identLetters[n.Int64()]
	}
	return string(b)
}
