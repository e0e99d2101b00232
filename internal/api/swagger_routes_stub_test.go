//go:build !swagger

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwaggerRoutes_DisabledWithoutTag(t *testing.T) {
	r := newTestRouter(&fakeController{})

	w := do(r, http.MethodGet, "/swagger/index.html")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
