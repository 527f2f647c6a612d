package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/notice"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/ticket"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	uploadsvc "github.com/trezcool/academia/services/uploader"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

const (
	testPwd      = "Kw9#rtzLmq!"
	filesBaseURL = "http://files.test"
)

// testApp is a running API over in-memory storage, with one user per role.
// studentA attends batchA and studentB attends batchB; teacher teaches both.
type testApp struct {
	srv      echoapi.Server
	deps     *echoapi.Deps
	conf     *core.Config
	mailSvc  *emailsvc.ConsoleServiceMock
	uploader *uploadsvc.MemoryUploader
	usrRepo  user.Repository

	admin, teacher, studentA, studentB, other, disabled user.User

	batchA, batchB string
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.Config()
	logger := logsvc.NewDiscardLogger()
	validate, translator := testutil.Validator()
	pol := policy.New()

	templates, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	require.NoError(t, err)
	mailSvc := emailsvc.NewConsoleServiceMock(templates, logger, conf)
	uploader := uploadsvc.NewMemoryUploader(filesBaseURL)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	contentRepo := inmemdb.NewContentRepository(db)

	usrSvc := user.NewService(usrRepo, pol, validate, mailSvc, logger, conf)
	batchSvc := batch.NewService(inmemdb.NewBatchRepository(db), usrRepo, pol, validate)

	app := &testApp{
		conf:     conf,
		mailSvc:  mailSvc,
		uploader: uploader,
		usrRepo:  usrRepo,
		admin:    testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", testPwd, core.RoleAdmin, true),
		teacher:  testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", testPwd, core.RoleTeacher, true),
		studentA: testutil.CreateUser(t, usrRepo, "Student A", "student.a@test.cd", testPwd, core.RoleStudent, true),
		studentB: testutil.CreateUser(t, usrRepo, "Student B", "student.b@test.cd", testPwd, core.RoleStudent, true),
		other:    testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", testPwd, core.RoleOther, true),
		disabled: testutil.CreateUser(t, usrRepo, "Disabled", "disabled@test.cd", testPwd, core.RoleStudent, false),
	}

	ctx := context.Background()
	adminSubj := testutil.Subject(app.admin)
	course, err := batchSvc.CreateCourse(ctx, adminSubj, batch.NewCourse{Name: "Physics"})
	require.NoError(t, err)
	bA, err := batchSvc.CreateBatch(ctx, adminSubj, batch.NewBatch{
		CourseID: course.ID, Name: "A", TeacherIDs: []string{app.teacher.ID}, StudentIDs: []string{app.studentA.ID},
	})
	require.NoError(t, err)
	bB, err := batchSvc.CreateBatch(ctx, adminSubj, batch.NewBatch{
		CourseID: course.ID, Name: "B", TeacherIDs: []string{app.teacher.ID}, StudentIDs: []string{app.studentB.ID},
	})
	require.NoError(t, err)
	app.batchA, app.batchB = bA.ID, bB.ID

	app.deps = &echoapi.Deps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Uploader:      uploader,
		Issuer:        auth.NewIssuer(conf, usrSvc),
		Authenticator: auth.NewAuthenticator(conf, usrSvc, inmemdb.NewDenylist()),
		Users:         usrSvc,
		Batches:       batchSvc,
		Tickets:       ticket.NewService(inmemdb.NewTicketRepository(db), pol, validate, nil, logger),
		Materials:     content.NewService(content.KindMaterial, contentRepo, pol, validate),
		Recordings:    content.NewService(content.KindRecording, contentRepo, pol, validate),
		Fees:          fee.NewService(inmemdb.NewFeeRepository(db), pol, validate),
		Notices:       notice.NewService(inmemdb.NewNoticeRepository(db), pol, validate),
	}
	app.srv = echoapi.NewServer(app.deps)
	return app
}

// envelope is the decoded body of every API response.
type envelope map[string]interface{}

func (e envelope) success() bool {
	ok, _ := e["success"].(bool)
	return ok
}

func (e envelope) message() string {
	msg, _ := e["message"].(string)
	return msg
}

func (e envelope) obj(key string) map[string]interface{} {
	obj, _ := e[key].(map[string]interface{})
	return obj
}

func (e envelope) list(key string) []interface{} {
	list, _ := e[key].([]interface{})
	return list
}

func (e envelope) fields() map[string]interface{} {
	return e.obj("fields")
}

func newAuthRequest(t *testing.T, method, path, token string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newMultipartRequest(t *testing.T, path, token string, fields map[string]string, fileField, filename string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (app *testApp) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.srv.ServeHTTP(rec, req)
	return rec
}

// call sends a JSON request and decodes the envelope of the response.
func (app *testApp) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	return decode(t, app.serve(newAuthRequest(t, method, path, token, body)))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) (int, envelope) {
	t.Helper()
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

// login signs usr in through the API and returns its token.
func (app *testApp) login(t *testing.T, usr user.User) string {
	t.Helper()
	code, env := app.call(t, http.MethodPost, "/v1/auth/login", "", echoapi.LoginRequest{Email: usr.Email, Password: testPwd})
	require.Equal(t, http.StatusOK, code, env)
	token, _ := env["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func assertFailure(t *testing.T, code int, env envelope, wantCode int, wantMsg string) {
	t.Helper()
	assert.Equal(t, wantCode, code)
	assert.False(t, env.success())
	if wantMsg != "" {
		assert.Equal(t, wantMsg, env.message())
	}
}

func ids(list []interface{}) []string {
	res := make([]string, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]interface{}); ok {
			id, _ := obj["id"].(string)
			res = append(res, id)
		}
	}
	return res
}
