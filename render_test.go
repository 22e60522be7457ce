package blade

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestHTMLRender(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := loadedEngine(t, testFS())

	r := gin.New()
	r.HTMLRender = NewHTMLRender(e)
	r.GET("/", func(c *gin.Context) {
		HTML(c, NewView("pages/home", gin.H{"Name": "Gin"}))
	})
	r.GET("/list", func(c *gin.Context) {
		HTML(c, NewView("pages/list", gin.H{"Items": []string{"x"}}, http.StatusAccepted))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), `<head><script src="/home.js"></script>`+"\n"+`<script src="/widget.js"></script></head>`)
	require.Contains(t, w.Body.String(), `<h1>Hello Gin</h1>`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/list", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "<ul><li>x</li></ul>", w.Body.String())
}

func TestNewView(t *testing.T) {
	v := NewView("pages/home", 1)
	require.Equal(t, "pages/home", v.Name())
	require.Equal(t, 1, v.Data())
	require.Equal(t, http.StatusOK, v.Status())

	require.Equal(t, http.StatusNotFound, NewView("errors/404", nil, http.StatusNotFound).Status())
}
