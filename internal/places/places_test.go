package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenkpostcards/leadscout/internal/geo"
	"github.com/tenkpostcards/leadscout/internal/lead"
	"github.com/tenkpostcards/leadscout/internal/quota"
)

type stubGate struct {
	allowed  bool
	recorded []string
}

func (s *stubGate) Check(_ context.Context, _ string) quota.Status {
	return quota.Status{Allowed: s.allowed}
}

func (s *stubGate) RecordCall(provider string) {
	s.recorded = append(s.recorded, provider)
}

func TestHereSearchZipPolicy(t *testing.T) {
	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "14221", r.URL.Query().Get("q"))
		w.Write([]byte(`{"items":[{"position":{"lat":42.98,"lng":-78.72},"address":{"stateCode":"NY"}}]}`)) //nolint:errcheck
	}))
	defer geocode.Close()

	discover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[
			{"id":"a","title":"Exact Pizza","address":{"city":"Williamsville","stateCode":"NY","postalCode":"14221"}},
			{"id":"b","title":"Prefix Pizza","address":{"city":"Cheektowaga","stateCode":"NY","postalCode":"14225-1234"}},
			{"id":"c","title":"No Zip Pizza","address":{"city":"Amherst","stateCode":"NY"}},
			{"id":"d","title":"Far Pizza","address":{"city":"Rochester","stateCode":"NY","postalCode":"14604"}},
			{"id":"e","title":"Wrong State Pizza","address":{"city":"Erie","stateCode":"PA","postalCode":"14223"}}
		]}`)) //nolint:errcheck
	}))
	defer discover.Close()

	h := NewHere("key", nil, nil, nil, nil)
	h.geocodeEndpoint = geocode.URL
	h.discoverEndpoint = discover.URL

	res, err := h.Search(context.Background(), "14221", "pizza", 25)
	require.NoError(t, err)
	require.Len(t, res.Businesses, 3)

	require.Equal(t, "14221", res.Businesses[0].Zip)
	// ZIP+4 normalized to five digits, kept on the shared prefix.
	require.Equal(t, "14225", res.Businesses[1].Zip)
	// Missing vendor ZIP backfilled with the searched one.
	require.Equal(t, "14221", res.Businesses[2].Zip)
	for _, b := range res.Businesses {
		require.Equal(t, lead.SourceHere, b.Source)
		require.Equal(t, "14221", b.SearchedZipCode)
	}
}

func TestHereSearchZipPolicyWarmCache(t *testing.T) {
	geocodeCalls := 0
	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		geocodeCalls++
		w.Write([]byte(`{"items":[{"position":{"lat":42.98,"lng":-78.72},"address":{"stateCode":"NY"}}]}`)) //nolint:errcheck
	}))
	defer geocode.Close()

	discover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"items":[
			{"id":"a","title":"Exact Pizza","address":{"city":"Williamsville","stateCode":"NY","postalCode":"14221"}},
			{"id":"e","title":"Wrong State Pizza","address":{"city":"Erie","stateCode":"PA","postalCode":"14223"}}
		]}`)) //nolint:errcheck
	}))
	defer discover.Close()

	h := NewHere("key", nil, nil, geo.NewMemoryCache(), nil)
	h.geocodeEndpoint = geocode.URL
	h.discoverEndpoint = discover.URL

	// Cold pass populates the cache; warm pass must apply the same
	// cross-state rejection from the cached state code.
	for pass := 0; pass < 2; pass++ {
		res, err := h.Search(context.Background(), "14221", "pizza", 25)
		require.NoError(t, err)
		require.Len(t, res.Businesses, 1, "pass %d", pass)
		require.Equal(t, "Exact Pizza", res.Businesses[0].Name, "pass %d", pass)
	}
	require.Equal(t, 1, geocodeCalls)
}

func TestHereSearchNotConfigured(t *testing.T) {
	h := NewHere("", nil, nil, nil, nil)
	res, err := h.Search(context.Background(), "14221", "pizza", 25)
	require.NoError(t, err)
	require.Empty(t, res.Businesses)
	require.Equal(t, MsgNotConfigured, res.Message)
}

func TestHereSearchQuotaDenied(t *testing.T) {
	gate := &stubGate{allowed: false}
	h := NewHere("key", nil, gate, nil, nil)
	res, err := h.Search(context.Background(), "14221", "pizza", 25)
	require.NoError(t, err)
	require.Empty(t, res.Businesses)
	require.Equal(t, MsgQuotaExceeded, res.Message)
	require.Empty(t, gate.recorded)
}

func TestFoursquareExactZipOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("Authorization"))
		require.Equal(t, "14221", r.URL.Query().Get("near"))
		w.Write([]byte(`{"results":[
			{"fsq_id":"f1","name":"Kept Diner","rating":9.0,"location":{"postcode":"14221","locality":"Williamsville","region":"NY"}},
			{"fsq_id":"f2","name":"Dropped Diner","location":{"postcode":"14225"}},
			{"fsq_id":"f3","name":"No Zip Diner","location":{}}
		]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	gate := &stubGate{allowed: true}
	f := NewFoursquare("key", nil, gate, nil)
	f.endpoint = srv.URL

	res, err := f.Search(context.Background(), "14221", "diner", 25)
	require.NoError(t, err)
	require.Len(t, res.Businesses, 2)
	require.Equal(t, "Kept Diner", res.Businesses[0].Name)
	require.Equal(t, 4.5, res.Businesses[0].Rating)
	require.Equal(t, "No Zip Diner", res.Businesses[1].Name)
	require.Equal(t, "14221", res.Businesses[1].Zip)
	require.Equal(t, []string{"foursquare"}, gate.recorded)
}

func TestGooglePlacesAddressParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"g1","name":"Adams Heating","formatted_address":"123 Main St, Buffalo, NY 14221, USA","rating":4.8,"user_ratings_total":120},
			{"place_id":"g2","name":"Next Town Co","formatted_address":"9 Elm Ave, Rochester, NY 14604, USA"}
		]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	g := NewGooglePlaces("key", nil, nil, nil)
	g.endpoint = srv.URL

	res, err := g.Search(context.Background(), "14221", "heating", 25)
	require.NoError(t, err)
	require.Len(t, res.Businesses, 1)

	b := res.Businesses[0]
	require.Equal(t, "123 Main St", b.Address)
	require.Equal(t, "Buffalo", b.City)
	require.Equal(t, "NY", b.State)
	require.Equal(t, "14221", b.Zip)
}

func TestGooglePlacesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","results":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	g := NewGooglePlaces("key", nil, nil, nil)
	g.endpoint = srv.URL

	res, err := g.Search(context.Background(), "14221", "heating", 25)
	require.NoError(t, err)
	require.Empty(t, res.Businesses)
	require.Equal(t, "OVER_QUERY_LIMIT", res.Message)
}

func TestParseFormattedAddress(t *testing.T) {
	city, state, zip, street := parseFormattedAddress("123 Main St, Buffalo, NY 14221, USA")
	require.Equal(t, "Buffalo", city)
	require.Equal(t, "NY", state)
	require.Equal(t, "14221", zip)
	require.Equal(t, "123 Main St", street)

	city, state, zip, street = parseFormattedAddress("somewhere odd")
	require.Empty(t, city)
	require.Empty(t, state)
	require.Empty(t, zip)
	require.Equal(t, "somewhere odd", street)
}

func TestOutscraperNestedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("X-API-KEY"))
		w.Write([]byte(`{"data":[[
			{"place_id":"o1","name":"Nested Shop","postal_code":"14221","city":"Buffalo","state":"NY","site":"https://nestedshop.com"}
		]]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	o := NewOutscraper("key", nil, nil, nil)
	o.endpoint = srv.URL

	res, err := o.Search(context.Background(), "14221", "shop", 5)
	require.NoError(t, err)
	require.Len(t, res.Businesses, 1)
	require.Equal(t, "Nested Shop", res.Businesses[0].Name)
	require.Equal(t, "https://nestedshop.com", res.Businesses[0].Website)
}

func TestOutscraperFlatData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"place_id":"o2","name":"Flat Shop","postal_code":"14221"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	o := NewOutscraper("key", nil, nil, nil)
	o.endpoint = srv.URL

	res, err := o.Search(context.Background(), "14221", "shop", 5)
	require.NoError(t, err)
	require.Len(t, res.Businesses, 1)
	require.Equal(t, "Flat Shop", res.Businesses[0].Name)
}

func TestOutscraperPendingThenReady(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	hits := 0
	mux.HandleFunc("/maps", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Pending","results_location":"` + srv.URL + `/results"}`)) //nolint:errcheck
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 2 {
			w.Write([]byte(`{"status":"Pending","results_location":"` + srv.URL + `/results"}`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`{"status":"Success","data":[{"place_id":"o3","name":"Async Shop","postal_code":"14221"}]}`)) //nolint:errcheck
	})

	o := NewOutscraper("key", nil, nil, nil)
	o.endpoint = srv.URL + "/maps"
	o.pollInterval = time.Millisecond

	res, err := o.Search(context.Background(), "14221", "shop", 5)
	require.NoError(t, err)
	require.Len(t, res.Businesses, 1)
	require.Equal(t, "Async Shop", res.Businesses[0].Name)
	require.Equal(t, 2, hits)
}

func TestOutscraperPendingTimesOut(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	polls := 0
	mux.HandleFunc("/maps", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Pending","results_location":"` + srv.URL + `/results"}`)) //nolint:errcheck
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		polls++
		w.Write([]byte(`{"status":"Pending","results_location":"` + srv.URL + `/results"}`)) //nolint:errcheck
	})

	o := NewOutscraper("key", nil, nil, nil)
	o.endpoint = srv.URL + "/maps"
	o.pollInterval = time.Millisecond

	res, err := o.Search(context.Background(), "14221", "shop", 5)
	require.NoError(t, err)
	require.Empty(t, res.Businesses)
	require.Equal(t, "timeout waiting for results", res.Message)
	require.Equal(t, outscraperMaxPolls, polls)
}

func TestOutscraperUnknownShapeFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"totally":"unexpected"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	o := NewOutscraper("key", nil, nil, nil)
	o.endpoint = srv.URL

	res, err := o.Search(context.Background(), "14221", "shop", 5)
	require.NoError(t, err)
	require.Empty(t, res.Businesses)
	require.Equal(t, "unrecognized response shape", res.Message)
}

func TestYelpSearchNoZipFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.Equal(t, "14221", r.URL.Query().Get("location"))
		w.Write([]byte(`{"businesses":[
			{"id":"y1","name":"Local Spot","url":"https://www.yelp.com/biz/local-spot?adjust_creative=x","rating":4.5,"review_count":33,
			 "location":{"address1":"1 Oak St","city":"Buffalo","state":"NY","zip_code":"14221","display_address":["1 Oak St","Buffalo, NY 14221"]}},
			{"id":"y2","name":"Neighbor Spot","url":"https://www.yelp.com/biz/neighbor-spot",
			 "location":{"zip_code":"14604"}}
		]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	y := NewYelp("key", nil, nil, nil)
	y.endpoint = srv.URL

	res, err := y.Search(context.Background(), "14221", "coffee", 20)
	require.NoError(t, err)
	// Yelp results are trusted; the out-of-ZIP record survives.
	require.Len(t, res.Businesses, 2)
	require.Equal(t, "https://www.yelp.com/biz/local-spot", res.Businesses[0].Website)
	require.Equal(t, "1 Oak St, Buffalo, NY 14221", res.Businesses[0].FullAddress)
	require.Equal(t, "14604", res.Businesses[1].Zip)
}

func TestYelpDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/local-spot", r.URL.Path)
		w.Write([]byte(`{"id":"y1","name":"Local Spot","phone":"+17165551234","url":"https://www.yelp.com/biz/local-spot",
			"location":{"address1":"1 Oak St","city":"Buffalo","state":"NY","zip_code":"14221"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	y := NewYelp("key", nil, nil, nil)
	y.endpoint = srv.URL

	b, err := y.Details(context.Background(), "local-spot")
	require.NoError(t, err)
	require.Equal(t, lead.SourceYelpDetails, b.Source)
	require.Equal(t, "+17165551234", b.Phone)
	require.Equal(t, "14221", b.Zip)
}
