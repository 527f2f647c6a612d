package echoapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_contentApi_scope(t *testing.T) {
	app := setup(t)
	teacher, studentA, studentB := app.login(t, app.teacher), app.login(t, app.studentA), app.login(t, app.studentB)

	code, env := app.call(t, http.MethodPost, "/v1/materials", studentA, map[string]interface{}{
		"title": "Notes", "url": "https://cdn.test/notes.pdf", "scope": "all",
	})
	assertFailure(t, code, env, http.StatusForbidden, "")

	code, env = app.call(t, http.MethodPost, "/v1/materials", teacher, map[string]interface{}{
		"title": "Notes", "url": "https://cdn.test/notes.pdf", "scope": []string{},
	})
	assertFailure(t, code, env, http.StatusBadRequest, "invalid input")
	assert.Contains(t, env.fields(), "scope")

	code, env = app.call(t, http.MethodPost, "/v1/materials", teacher, map[string]interface{}{
		"title": "Optics notes", "url": "https://cdn.test/notes.pdf", "scope": []string{app.batchA},
	})
	require.Equal(t, http.StatusCreated, code, env)
	item := env.obj("material")
	assert.Equal(t, app.teacher.ID, item["created_by"])
	assert.Equal(t, []interface{}{app.batchA}, item["scope"])
	itemID := item["id"].(string)
	path := "/v1/materials/" + itemID

	// only batch A sees it
	code, env = app.call(t, http.MethodGet, "/v1/materials", studentA, nil)
	require.Equal(t, http.StatusOK, code, env)
	assert.Equal(t, []string{itemID}, ids(env.list("materials")))
	code, env = app.call(t, http.MethodGet, "/v1/materials", studentB, nil)
	require.Equal(t, http.StatusOK, code, env)
	assert.Empty(t, env.list("materials"))
	code, env = app.call(t, http.MethodGet, path, studentB, nil)
	assertFailure(t, code, env, http.StatusNotFound, "")

	// search
	code, env = app.call(t, http.MethodGet, "/v1/materials?search=OPTICS", studentA, nil)
	require.Equal(t, http.StatusOK, code, env)
	assert.Len(t, env.list("materials"), 1)
	code, env = app.call(t, http.MethodGet, "/v1/materials?search=thermo", studentA, nil)
	require.Equal(t, http.StatusOK, code, env)
	assert.Empty(t, env.list("materials"))

	// recordings are a separate collection
	code, env = app.call(t, http.MethodGet, "/v1/recordings", teacher, nil)
	require.Equal(t, http.StatusOK, code, env)
	assert.Empty(t, env.list("recordings"))
	code, _ = app.call(t, http.MethodGet, "/v1/recordings/"+itemID, teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// rescope
	code, _ = app.call(t, http.MethodPatch, path+"/scope", studentA, map[string]interface{}{"scope": "all"})
	assert.Equal(t, http.StatusForbidden, code)
	code, env = app.call(t, http.MethodPatch, path+"/scope", teacher, map[string]interface{}{"scope": "all"})
	require.Equal(t, http.StatusOK, code, env)
	assert.Equal(t, "all", env.obj("material")["scope"])
	code, env = app.call(t, http.MethodGet, path, studentB, nil)
	require.Equal(t, http.StatusOK, code, env)
	assert.Equal(t, itemID, env.obj("material")["id"])

	// delete
	code, _ = app.call(t, http.MethodDelete, path, studentB, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, env = app.call(t, http.MethodDelete, path, teacher, nil)
	require.Equal(t, http.StatusOK, code, env)
	code, _ = app.call(t, http.MethodGet, path, teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func Test_contentApi_views(t *testing.T) {
	app := setup(t)
	teacher, admin, studentA := app.login(t, app.teacher), app.login(t, app.admin), app.login(t, app.studentA)

	code, env := app.call(t, http.MethodPost, "/v1/recordings", teacher, map[string]interface{}{
		"title": "Lesson 1", "url": "https://cdn.test/lesson1.mp4", "scope": []string{app.batchA},
	})
	require.Equal(t, http.StatusCreated, code, env)
	path := "/v1/recordings/" + env.obj("recording")["id"].(string)

	// every view is appended
	for i := 0; i < 2; i++ {
		code, env = app.call(t, http.MethodPost, path+"/view", studentA, nil)
		require.Equal(t, http.StatusCreated, code, env)
		assert.Equal(t, app.studentA.ID, env.obj("view")["user_id"])
	}

	code, env = app.call(t, http.MethodGet, path+"/views", studentA, nil)
	assertFailure(t, code, env, http.StatusForbidden, "")

	for _, token := range []string{teacher, admin} {
		code, env = app.call(t, http.MethodGet, path+"/views", token, nil)
		require.Equal(t, http.StatusOK, code, env)
		assert.Len(t, env.list("views"), 2)
	}
}

func Test_contentApi_upload(t *testing.T) {
	app := setup(t)
	teacher, studentB := app.login(t, app.teacher), app.login(t, app.studentB)
	file := []byte("%PDF-1.4")

	req := newMultipartRequest(t, "/v1/materials", studentB, map[string]string{"title": "Notes", "scope": "all"}, "file", "notes.pdf", file)
	code, env := decode(t, app.serve(req))
	assertFailure(t, code, env, http.StatusForbidden, "")

	req = newMultipartRequest(t, "/v1/materials", teacher,
		map[string]string{"title": "Notes", "scope": app.batchA + ", " + app.batchB},
		"file", "notes.pdf", file)
	code, env = decode(t, app.serve(req))
	require.Equal(t, http.StatusCreated, code, env)

	item := env.obj("material")
	assert.ElementsMatch(t, []interface{}{app.batchA, app.batchB}, item["scope"])
	url, _ := item["url"].(string)
	assert.True(t, strings.HasPrefix(url, filesBaseURL+"/materials/"), url)
	stored, ok := app.uploader.File(url)
	require.True(t, ok)
	assert.Equal(t, file, stored)

	// neither a file nor a url
	req = newMultipartRequest(t, "/v1/materials", teacher, map[string]string{"title": "Empty", "scope": "all"}, "", "", nil)
	code, env = decode(t, app.serve(req))
	assertFailure(t, code, env, http.StatusBadRequest, "invalid input")
	assert.Contains(t, env.fields(), "url")
}

func Test_contentApi_rejectedUploadNotStored(t *testing.T) {
	app := setup(t)
	teacher, studentB := app.login(t, app.teacher), app.login(t, app.studentB)
	file := []byte("%PDF-1.4")

	tests := []struct {
		name     string
		token    string
		fields   map[string]string
		wantCode int
	}{
		{name: "forbidden", token: studentB, fields: map[string]string{"title": "Notes", "scope": "all"}, wantCode: http.StatusForbidden},
		{name: "missing title", token: teacher, fields: map[string]string{"title": " ", "scope": "all"}, wantCode: http.StatusBadRequest},
		{name: "missing scope", token: teacher, fields: map[string]string{"title": "Notes"}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newMultipartRequest(t, "/v1/recordings", tt.token, tt.fields, "file", "lesson.mp4", file)
			code, env := decode(t, app.serve(req))
			assertFailure(t, code, env, tt.wantCode, "")
			assert.Zero(t, app.uploader.Len())
		})
	}
}
