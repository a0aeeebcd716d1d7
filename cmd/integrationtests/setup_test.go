package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auction "auction-house/internal/auctionService"
	"auction-house/internal/broadcast"
	"auction-house/internal/repository"
	"auction-house/internal/server"

	"github.com/gin-gonic/gin"
)

// testEnv bundles the wired application with a controllable clock so tests
// can move auctions past their deadline deterministically.
type testEnv struct {
	router *gin.Engine
	svc    *auction.AuctionService
	repo   *repository.MemoryRepo
	hub    *broadcast.Hub
	now    time.Time
}

// newTestEnv wires the full stack over the in-memory store
func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		now:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		repo: repository.NewMemoryRepo(),
		hub:  broadcast.NewHub(),
	}
	env.svc = auction.NewAuctionService(env.repo, env.hub)
	env.svc.SetClock(func() time.Time { return env.now })
	env.router = server.SetupRouter(env.svc, env.hub)
	return env
}

// advance moves the test clock forward
func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

// ExecuteRequestAndParse executes an HTTP request on the router and parses
// the JSON response envelope
func (env *testEnv) ExecuteRequestAndParse(t *testing.T, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// registerUser creates a user over the API and returns its ID
func (env *testEnv) registerUser(t *testing.T, username string, balance float64) string {
	t.Helper()

	resp, w := env.ExecuteRequestAndParse(t, "POST", "/users", map[string]any{"username": username})
	if w.Code != 201 {
		t.Fatalf("failed to register %s: status %d", username, w.Code)
	}
	userID := resp["data"].(map[string]any)["user_id"].(string)

	if balance > 0 {
		_, w = env.ExecuteRequestAndParse(t, "POST", "/users/"+userID+"/topup", map[string]any{"amount": balance})
		if w.Code != 200 {
			t.Fatalf("failed to top up %s: status %d", username, w.Code)
		}
	}
	return userID
}

// createAuction creates an auction over the API and returns its ID
func (env *testEnv) createAuction(t *testing.T, product string, duration int, startPrice float64) string {
	t.Helper()

	resp, w := env.ExecuteRequestAndParse(t, "POST", "/auctions", map[string]any{
		"product":     product,
		"duration":    duration,
		"start_price": startPrice,
	})
	if w.Code != 201 {
		t.Fatalf("failed to create auction: status %d", w.Code)
	}
	return resp["data"].(map[string]any)["auction_id"].(string)
}

// placeBid posts a bid and returns the parsed response data and status code
func (env *testEnv) placeBid(t *testing.T, auctionID, userID string, amount float64) (map[string]any, int) {
	t.Helper()

	resp, w := env.ExecuteRequestAndParse(t, "POST", "/bids", map[string]any{
		"auction_id": auctionID,
		"user_id":    userID,
		"amount":     amount,
	})
	data, _ := resp["data"].(map[string]any)
	return data, w.Code
}
