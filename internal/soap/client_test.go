package soap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type capturedRequest struct {
	Path string
	Env  struct {
		Header struct {
			Context struct {
				JSNS      string `json:"_jsns"`
				AuthToken string `json:"authToken"`
				Session   *struct {
					ID string `json:"id"`
				} `json:"session"`
				Notify *struct {
					Seq int `json:"seq"`
				} `json:"notify"`
			} `json:"context"`
		} `json:"Header"`
		Body map[string]json.RawMessage `json:"Body"`
	}
}

// replayServer answers each request with the next canned response.
type replayServer struct {
	mu        sync.Mutex
	responses []func(w http.ResponseWriter)
	requests  []capturedRequest
}

func (s *replayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req capturedRequest
	req.Path = r.URL.Path
	_ = json.NewDecoder(r.Body).Decode(&req.Env)

	s.mu.Lock()
	s.requests = append(s.requests, req)
	var respond func(http.ResponseWriter)
	if len(s.responses) > 0 {
		respond = s.responses[0]
		s.responses = s.responses[1:]
	}
	s.mu.Unlock()

	if respond == nil {
		http.Error(w, "no response queued", http.StatusInternalServerError)
		return
	}
	respond(w)
}

func (s *replayServer) queue(fns ...func(w http.ResponseWriter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, fns...)
}

func jsonResponse(body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func statusResponse(code int, header map[string]string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(code)
	}
}

func newTestClient(t *testing.T) (*Client, *replayServer) {
	t.Helper()
	srv := &replayServer{}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", "tok-1", WithLogger(zaptest.NewLogger(t))), srv
}

func TestInvokeSendsEnvelope(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(jsonResponse(`{"Body":{"SearchResponse":{"more":true,"offset":0,
		"cn":[{"id":"257","l":"7","_attrs":{"firstName":"Ada"}}]}}}`))

	resp, err := NewAPI(c).Search(context.Background(), FolderQuery("7"), SearchOptions{})
	require.NoError(t, err)
	assert.True(t, resp.More)
	require.Len(t, resp.Contacts, 1)
	assert.Equal(t, "Ada", resp.Contacts[0].Attrs.Values["firstName"])

	require.Len(t, srv.requests, 1)
	req := srv.requests[0]
	assert.Equal(t, "/service/soap/SearchRequest", req.Path)
	assert.Equal(t, NSZimbra, req.Env.Header.Context.JSNS)
	assert.Equal(t, "tok-1", req.Env.Header.Context.AuthToken)
	assert.Nil(t, req.Env.Header.Context.Notify)

	var sent SearchRequest
	require.NoError(t, json.Unmarshal(req.Env.Body["SearchRequest"], &sent))
	assert.Equal(t, SearchRequest{
		JSNS:   NSMail,
		Types:  "contact",
		Query:  `inid:"7"`,
		Offset: 0,
		Limit:  DefaultSearchLimit,
		SortBy: DefaultSearchSortBy,
	}, sent)
}

func TestInvokeDecodesFault(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(jsonResponse(`{"Body":{"Fault":{"Code":{"Value":"soap:Sender"},
		"Reason":{"Text":"no such item: 999"},
		"Detail":{"Error":{"Code":"mail.NO_SUCH_ITEM"}}}}}`))

	_, err := NewAPI(c).ContactAction(context.Background(), ContactActionSpec{Op: ContactOpDelete, IDs: "999"})
	require.Error(t, err)

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "ContactAction", fault.Op)
	assert.Equal(t, "no such item: 999", fault.Reason)
	assert.True(t, IsFault(err, CodeNoSuchItem))
	assert.False(t, IsAuthError(err))
}

func TestInvokeAuthFailures(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(
		statusResponse(http.StatusUnauthorized, nil),
		jsonResponse(`{"Body":{"Fault":{"Reason":{"Text":"auth credentials have expired"},
			"Detail":{"Error":{"Code":"service.AUTH_EXPIRED"}}}}}`),
	)
	api := NewAPI(c)

	_, err := api.GetFolders(context.Background())
	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.True(t, IsAuthError(err))

	_, err = api.GetFolders(context.Background())
	assert.True(t, IsAuthError(err))
	assert.True(t, IsFault(err, CodeAuthExpired))
}

func TestInvokeRetriesRateLimited(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(
		statusResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "0"}),
		jsonResponse(`{"Body":{"NoOpResponse":{}}}`),
	)

	require.NoError(t, NewAPI(c).NoOp(context.Background(), false, 0))
	assert.Len(t, srv.requests, 2)
}

func TestInvokeGivesUpAfterMaxRetries(t *testing.T) {
	srv := &replayServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	c := NewClient(ts.URL, "", WithMaxRetries(1))
	srv.queue(
		statusResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "0"}),
		statusResponse(http.StatusTooManyRequests, map[string]string{"Retry-After": "0"}),
	)

	err := c.Invoke(context.Background(), "NoOp", NoOpRequest{JSNS: NSMail}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
}

func TestInvokeRejectsMissingResponseElement(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(jsonResponse(`{"Body":{"SomethingElse":{}}}`))

	_, err := NewAPI(c).GetFolders(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestInvokeNonJSONErrorStatus(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	err := c.Invoke(context.Background(), "NoOp", NoOpRequest{JSNS: NSMail}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestNotificationsAreAcknowledged(t *testing.T) {
	c, srv := newTestClient(t)

	type delivery struct {
		session string
		seqs    []int
	}
	var got []delivery
	c.OnNotify(func(session string, blocks []Notification) {
		d := delivery{session: session}
		for _, b := range blocks {
			d.seqs = append(d.seqs, b.Seq)
		}
		got = append(got, d)
	})

	srv.queue(
		jsonResponse(`{"Header":{"context":{"session":{"id":"s1"},"notify":[
			{"seq":1,"created":{"cn":[{"id":"300","l":"7","_attrs":{"firstName":"Grace"}}]}},
			{"seq":2,"deleted":{"id":"257,258"}}]}},
			"Body":{"NoOpResponse":{}}}`),
		jsonResponse(`{"Header":{"context":{"session":{"id":"s1"},"notify":[
			{"seq":2,"deleted":{"id":"257,258"}},
			{"seq":3,"modified":{"folder":[{"id":"7","n":4}]}}]}},
			"Body":{"NoOpResponse":{}}}`),
		jsonResponse(`{"Header":{"context":{"session":{"id":"s2"},"notify":[{"seq":1}]}},
			"Body":{"NoOpResponse":{}}}`),
		jsonResponse(`{"Body":{"NoOpResponse":{}}}`),
	)

	api := NewAPI(c)
	for i := 0; i < 4; i++ {
		require.NoError(t, api.NoOp(context.Background(), false, 0))
	}

	assert.Equal(t, []delivery{
		{session: "s1", seqs: []int{1, 2}},
		{session: "s1", seqs: []int{3}},
		{session: "s2", seqs: []int{1}},
	}, got)
	assert.Equal(t, "s2", c.SessionID())

	require.Len(t, srv.requests, 4)
	assert.Nil(t, srv.requests[0].Env.Header.Context.Notify)
	assert.Equal(t, 2, srv.requests[1].Env.Header.Context.Notify.Seq)
	assert.Equal(t, "s1", srv.requests[1].Env.Header.Context.Session.ID)
	assert.Equal(t, 3, srv.requests[2].Env.Header.Context.Notify.Seq)
	assert.Equal(t, 1, srv.requests[3].Env.Header.Context.Notify.Seq)
	assert.Equal(t, "s2", srv.requests[3].Env.Header.Context.Session.ID)
}

func TestSetAuthToken(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(jsonResponse(`{"Body":{"NoOpResponse":{}}}`))

	c.SetAuthToken("tok-2")
	require.NoError(t, NewAPI(c).NoOp(context.Background(), false, 0))
	assert.Equal(t, "tok-2", srv.requests[0].Env.Header.Context.AuthToken)
}

func TestAttrsJSON(t *testing.T) {
	var a Attrs
	err := json.Unmarshal([]byte(`{"firstName":"Ada","fileAs":7,
		"image":{"part":"1","ct":"image/png","s":120,"filename":"ada.png"}}`), &a)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"firstName": "Ada"}, a.Values)
	require.NotNil(t, a.Image)
	assert.Equal(t, "1", a.Image.Part)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"firstName":"Ada",
		"image":{"part":"1","ct":"image/png","s":120,"filename":"ada.png"}}`, string(data))
}

func TestAPIRejectsUnknownActions(t *testing.T) {
	c, srv := newTestClient(t)
	api := NewAPI(c)

	_, err := api.ContactAction(context.Background(), ContactActionSpec{Op: "spam", IDs: "1"})
	assert.Error(t, err)
	_, err = api.FolderAction(context.Background(), FolderActionSpec{Op: "chmod", ID: "300"})
	assert.Error(t, err)
	assert.Empty(t, srv.requests)
}

func TestCreateMountpointsBatch(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(jsonResponse(`{"Body":{"BatchResponse":{
		"CreateMountpointResponse":[{"link":[{"id":"400","name":"Team","l":"1","view":"contact","owner":"bob@example.com"}]}]}}}`))

	recs, err := NewAPI(c).CreateMountpoints(context.Background(), []NewLink{
		{Parent: "1", Name: "Team", OwnerID: "u-bob", RemoteID: "7"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "400", recs[0].ID)

	var sent BatchRequest
	require.NoError(t, json.Unmarshal(srv.requests[0].Env.Body["BatchRequest"], &sent))
	assert.Equal(t, NSZimbra, sent.JSNS)
	assert.Equal(t, "continue", sent.OnError)
	require.Len(t, sent.CreateMountpoint, 1)
	assert.Equal(t, NSMail, sent.CreateMountpoint[0].JSNS)
	assert.Equal(t, "contact", sent.CreateMountpoint[0].Link.View)
}

func TestAuthenticate(t *testing.T) {
	c, srv := newTestClient(t)
	srv.queue(
		jsonResponse(`{"Body":{"AuthResponse":{"authToken":[{"_content":"fresh"}],"lifetime":3600}}}`),
		jsonResponse(`{"Body":{"Fault":{"Reason":{"Text":"authentication failed"},
			"Detail":{"Error":{"Code":"account.AUTH_FAILED"}}}}}`),
	)
	api := NewAPI(c)

	tok, err := api.Authenticate(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)

	var sent AuthRequest
	require.NoError(t, json.Unmarshal(srv.requests[0].Env.Body["AuthRequest"], &sent))
	assert.Equal(t, NSAccount, sent.JSNS)
	assert.Equal(t, AccountSelector{By: "name", Value: "ada@example.com"}, sent.Account)

	_, err = api.Authenticate(context.Background(), "ada@example.com", "wrong")
	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
}
