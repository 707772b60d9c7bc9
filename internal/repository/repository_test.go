package repository

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/metrics"
	"github.com/bioscout-islamabad/bioscout/internal/model"
)

const baseURL = "http://upstream.test"

func newMockClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	m, err := metrics.New()
	require.NoError(t, err)
	c := NewClient(baseURL+"/", time.Second, nil, m)
	mt := httpmock.NewMockTransport()
	c.HTTPClient().Transport = mt
	return c, mt
}

func TestFindAll(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/observations",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"observation_id":"OBS001","species_name":"Aquila rapax","common_name":"Tawny Eagle","date_observed":"2025-05-01","location":"Rawal Lake","notes":"","observer":"Ali","image_url":""},
			{"observation_id":"OBS002","species_name":"Pinus roxburghii","common_name":"Chir Pine","date_observed":"2025-05-03","location":"Margalla Hills","observer":""}
		]`))

	list, err := NewObservationRepository(c).FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Tawny Eagle", list[0].CommonName)
	assert.Equal(t, "Anonymous", list[1].ObserverName())
}

func TestFindAllNullBodyIsEmpty(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/observations", httpmock.NewStringResponder(http.StatusOK, `null`))

	list, err := NewObservationRepository(c).FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestMalformedBodyUsesGenericMessage(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/observations",
		httpmock.NewStringResponder(http.StatusOK, `{"observation_id":`))

	_, err := NewObservationRepository(c).FindAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindServer, apperr.KindOf(err))
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
	assert.Equal(t, "Failed to load observations", apperr.UserMessage(err, "Failed to load observations"))
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responder httpmock.Responder
		kind      apperr.Kind
		message   string
	}{
		{"error field", httpmock.NewStringResponder(http.StatusBadRequest, `{"error":"Missing fields: location"}`), apperr.KindServer, "Missing fields: location"},
		{"message field", httpmock.NewStringResponder(http.StatusNotFound, `{"message":"User not found"}`), apperr.KindServer, "User not found"},
		{"html body", httpmock.NewStringResponder(http.StatusInternalServerError, `<html>oops</html>`), apperr.KindServer, ""},
		{"transport", httpmock.NewErrorResponder(errors.New("connection refused")), apperr.KindNetwork, ""},
		{"deadline", httpmock.NewErrorResponder(context.DeadlineExceeded), apperr.KindTimeout, " (request timed out)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, mt := newMockClient(t)
			mt.RegisterResponder(http.MethodGet, baseURL+"/api/observations", tt.responder)

			_, err := NewObservationRepository(c).FindAll(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.message, apperr.UserMessage(err, ""))
		})
	}
}

func TestMalformedBodyIsServerError(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/analytics", httpmock.NewStringResponder(http.StatusOK, `{"total_observations":`))

	_, err := NewInsightRepository(c).Analytics(context.Background())
	assert.ErrorIs(t, err, apperr.ErrServer)
}

func TestCreateSendsMultipartWithImage(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodPost, baseURL+"/api/submit", func(req *http.Request) (*http.Response, error) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"bad form"}`), nil
		}
		if req.FormValue("species_name") != "Aquila rapax" || req.FormValue("image_url") != "" {
			return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"unexpected fields"}`), nil
		}
		f, hdr, err := req.FormFile("image")
		if err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"no image"}`), nil
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		if string(body) != "jpegbytes" || hdr.Filename != "eagle.jpg" {
			return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"wrong image"}`), nil
		}
		return httpmock.NewStringResponse(http.StatusCreated,
			`{"message":"Observation submitted successfully!","observation":{"observation_id":"1A2B3C4D","species_name":"Aquila rapax","image_url":"/uploads/eagle.jpg"}}`), nil
	})

	resp, err := NewObservationRepository(c).Create(context.Background(), model.SubmitRequest{
		SpeciesName:  "Aquila rapax",
		CommonName:   "Tawny Eagle",
		DateObserved: "2025-05-01",
		Location:     "Rawal Lake",
		ImageURL:     "http://ignored.example/eagle.jpg",
		Image:        strings.NewReader("jpegbytes"),
		ImageName:    "../../eagle.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "1A2B3C4D", resp.Observation.ObservationID)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestCreateSendsImageURLWithoutFile(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodPost, baseURL+"/api/submit", func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		assert.Equal(t, "https://example.org/fox.jpg", req.FormValue("image_url"))
		_, _, err := req.FormFile("image")
		assert.ErrorIs(t, err, http.ErrMissingFile)
		return httpmock.NewStringResponse(http.StatusCreated, `{"message":"ok","observation":{}}`), nil
	})

	_, err := NewObservationRepository(c).Create(context.Background(), model.SubmitRequest{
		SpeciesName: "Vulpes vulpes", CommonName: "Red Fox", DateObserved: "2025-05-01", Location: "Margalla Hills",
		ImageURL: "https://example.org/fox.jpg",
	})
	require.NoError(t, err)
}

func TestClassifyErrorInsideOKBody(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodPost, baseURL+"/api/classify-image",
		httpmock.NewStringResponder(http.StatusOK, `{"error":"Could not identify the image"}`))

	_, err := NewInsightRepository(c).Classify(context.Background(), model.ClassifyRequest{
		Image: strings.NewReader("x"), ClassificationType: "plant",
	})
	require.Error(t, err)
	assert.Equal(t, "Could not identify the image", apperr.UserMessage(err, "failed"))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodPost, baseURL+"/api/classify-image", func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		assert.Equal(t, "animal", req.FormValue("classification_type"))
		return httpmock.NewStringResponse(http.StatusOK,
			`{"species_name":"Aquila rapax","common_name":"Tawny Eagle","confidence":0.92}`), nil
	})

	res, err := NewInsightRepository(c).Classify(context.Background(), model.ClassifyRequest{
		Image: strings.NewReader("x"), ImageName: "bird.png", ClassificationType: "animal",
	})
	require.NoError(t, err)
	assert.Equal(t, "92.0%", res.ConfidenceLabel())
}

func TestDashboardEndpoints(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/user/stats/Sara%20K",
		httpmock.NewStringResponder(http.StatusOK, `{"total":3}`))
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/community/leaderboard",
		httpmock.NewStringResponder(http.StatusOK, `[{"name":"Ali","points":10}]`))
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/user/challenges/Sara%20K",
		httpmock.NewStringResponder(http.StatusOK, `{"other":1}`))

	repo := NewInsightRepository(c)
	ctx := context.Background()

	stats, err := repo.UserStats(ctx, "Sara K")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":3}`, string(stats))

	board, err := repo.Leaderboard(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Ali","points":10}]`, string(board))

	ch, err := repo.Challenges(ctx, "Sara K")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(ch))
}

func TestAskAndGamification(t *testing.T) {
	t.Parallel()

	c, mt := newMockClient(t)
	mt.RegisterResponder(http.MethodPost, baseURL+"/api/qa",
		httpmock.NewStringResponder(http.StatusOK, `{"answer":"Rawal Lake hosts wintering ducks."}`))
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/gamification",
		httpmock.NewStringResponder(http.StatusOK, `{"top_observer":"Ali","submissions":12}`))

	repo := NewInsightRepository(c)
	a, err := repo.Ask(context.Background(), "Which ducks winter at Rawal Lake?")
	require.NoError(t, err)
	assert.Contains(t, a.Answer, "Rawal Lake")

	g, err := repo.Gamification(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, g.Submissions)
}

func TestClientTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, 50*time.Millisecond, nil, nil)
	_, err := NewObservationRepository(c).FindAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
}

func TestBuildFilter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", BuildFilter(SearchFilter{Category: "all"}))
	assert.Equal(t, `category = "bird" AND location = "Rawal Lake"`,
		BuildFilter(SearchFilter{Category: "bird", Location: "Rawal Lake"}))
	assert.Equal(t, `observer = "Sara \"K\""`, BuildFilter(SearchFilter{Observer: `Sara "K"`}))
}

func TestNewDocument(t *testing.T) {
	t.Parallel()

	e := model.EnrichedObservation{
		Observation: model.Observation{ObservationID: "A1", SpeciesName: "Aquila rapax", Location: "Rawal Lake"},
		LatLng:      &model.Coordinate{Lat: 33.7, Lng: 73.1},
		Place:       "Rawal Lake",
		Category:    model.CategoryBird,
	}
	doc := NewDocument(e)
	assert.Equal(t, "A1", doc.ID)
	assert.Equal(t, "Anonymous", doc.Observer)
	assert.Equal(t, "bird", doc.Category)
	require.NotNil(t, doc.Lat)
	assert.InDelta(t, 33.7, *doc.Lat, 1e-9)

	assert.Nil(t, NewDocument(model.EnrichedObservation{}).Lat)
}
