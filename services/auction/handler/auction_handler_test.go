package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-house/internal/auctionerrors"
	auction "auction-house/internal/auctionService"
	"auction-house/internal/broadcast"
	model "auction-house/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(mockService *MockAuctionServiceInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	h := NewAuctionHandler(mockService, broadcast.NewHub())

	router.POST("/users", h.RegisterUserHandler)
	router.POST("/users/:user_id/topup", h.TopUpHandler)
	router.POST("/auctions", h.CreateAuctionHandler)
	router.POST("/bids", h.PlaceBidHandler)
	router.GET("/auctions/:auction_id/bids", h.GetBidsByAuctionHandler)
	router.GET("/auctions/:auction_id/winning", h.GetWinningBidHandler)

	return router
}

func performRequest(t *testing.T, router *gin.Engine, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestRegisterUserHandler(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newTestRouter(mockService)

	tests := []struct {
		name           string
		body           string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]interface{})
	}{
		{
			name: "success",
			body: `{"username":"alice"}`,
			mockSetup: func() {
				mockService.EXPECT().
					RegisterUser("alice").
					Return(model.User{UserID: "u1", Username: "alice", Balance: 0}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "user registered successfully",
			validateData: func(t *testing.T, data map[string]interface{}) {
				require.Equal(t, "u1", data["user_id"])
				require.Equal(t, "alice", data["username"])
			},
		},
		{
			name:           "missing username",
			body:           `{}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "service failure",
			body: `{"username":"alice"}`,
			mockSetup: func() {
				mockService.EXPECT().
					RegisterUser("alice").
					Return(model.User{}, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := performRequest(t, router, http.MethodPost, "/users", []byte(tc.body))

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil {
				data, ok := resp["data"].(map[string]interface{})
				require.True(t, ok)
				tc.validateData(t, data)
			}
		})
	}
}

func TestTopUpHandler(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newTestRouter(mockService)

	tests := []struct {
		name           string
		body           string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "success",
			body: `{"amount":250}`,
			mockSetup: func() {
				mockService.EXPECT().
					TopUp("u1", 250.0).
					Return(model.User{UserID: "u1", Username: "alice", Balance: 250}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "balance topped up successfully",
		},
		{
			name:           "non-positive amount",
			body:           `{"amount":0}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "unknown user",
			body: `{"amount":250}`,
			mockSetup: func() {
				mockService.EXPECT().
					TopUp("u1", 250.0).
					Return(model.User{}, auctionerrors.ErrUserNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "user not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := performRequest(t, router, http.MethodPost, "/users/u1/topup", []byte(tc.body))

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}

func TestCreateAuctionHandler(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newTestRouter(mockService)

	tests := []struct {
		name           string
		body           string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]interface{})
	}{
		{
			name: "success",
			body: `{"product":"vintage radio","duration":30,"start_price":100}`,
			mockSetup: func() {
				mockService.EXPECT().
					CreateAuction("vintage radio", 30, 100.0).
					Return(model.Auction{
						AuctionID:    "a1",
						Product:      "vintage radio",
						Duration:     30,
						StartPrice:   100,
						CurrentPrice: 100,
						Status:       model.StatusActive,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "auction created successfully",
			validateData: func(t *testing.T, data map[string]interface{}) {
				require.Equal(t, "a1", data["auction_id"])
				require.Equal(t, 100.0, data["current_price"])
				require.Equal(t, model.StatusActive, data["status"])
			},
		},
		{
			name:           "missing product",
			body:           `{"duration":30,"start_price":100}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "zero duration",
			body:           `{"product":"vintage radio","duration":0,"start_price":100}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := performRequest(t, router, http.MethodPost, "/auctions", []byte(tc.body))

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil {
				data, ok := resp["data"].(map[string]interface{})
				require.True(t, ok)
				tc.validateData(t, data)
			}
		})
	}
}

func TestPlaceBidHandler(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newTestRouter(mockService)

	acceptedBid := model.Bid{
		BidID:     "b1",
		AuctionID: "a1",
		UserID:    "u1",
		Amount:    150,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name           string
		body           string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]interface{})
	}{
		{
			name: "accepted bid",
			body: `{"auction_id":"a1","user_id":"u1","amount":150}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid("a1", "u1", 150.0).
					Return(auction.BidResult{
						Accepted: true,
						Auction:  model.Auction{AuctionID: "a1", CurrentPrice: 150, Winner: "u1"},
						Bid:      acceptedBid,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid accepted",
			validateData: func(t *testing.T, data map[string]interface{}) {
				require.Equal(t, true, data["accepted"])
				bid, ok := data["bid"].(map[string]interface{})
				require.True(t, ok)
				require.Equal(t, "b1", bid["bid_id"])
				require.Equal(t, 150.0, bid["amount"])
				require.Equal(t, "2025-06-01T12:00:00Z", bid["created_at"])
			},
		},
		{
			name: "rejected bid carries reason",
			body: `{"auction_id":"a1","user_id":"u2","amount":120}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid("a1", "u2", 120.0).
					Return(auction.BidResult{Accepted: false, Reason: "bid amount too low"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bid not accepted",
			validateData: func(t *testing.T, data map[string]interface{}) {
				require.Equal(t, false, data["accepted"])
				require.Equal(t, "bid amount too low", data["reason"])
				require.Nil(t, data["bid"])
			},
		},
		{
			name:           "missing auction id",
			body:           `{"user_id":"u1","amount":150}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "non-positive amount",
			body:           `{"auction_id":"a1","user_id":"u1","amount":0}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "storage failure",
			body: `{"auction_id":"a1","user_id":"u1","amount":150}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid("a1", "u1", 150.0).
					Return(auction.BidResult{}, errors.New("write failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := performRequest(t, router, http.MethodPost, "/bids", []byte(tc.body))

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil {
				data, ok := resp["data"].(map[string]interface{})
				require.True(t, ok)
				tc.validateData(t, data)
			}
		})
	}
}

func TestGetBidsByAuctionHandler(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newTestRouter(mockService)

	tests := []struct {
		name           string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedLen    int
	}{
		{
			name: "returns bids",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction("a1").
					Return([]model.Bid{
						{BidID: "b1", AuctionID: "a1", UserID: "u1", Amount: 150},
						{BidID: "b2", AuctionID: "a1", UserID: "u2", Amount: 180},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			expectedLen:    2,
		},
		{
			name: "no bids yields empty list",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction("a1").
					Return(nil, auctionerrors.ErrNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			expectedLen:    0,
		},
		{
			name: "unknown auction",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction("a1").
					Return(nil, auctionerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := performRequest(t, router, http.MethodGet, "/auctions/a1/bids", nil)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if w.Code == http.StatusOK {
				data, ok := resp["data"].([]interface{})
				require.True(t, ok)
				require.Len(t, data, tc.expectedLen)
			}
		})
	}
}

func TestGetWinningBidHandler(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAuctionServiceInterface(ctrl)
	router := newTestRouter(mockService)

	tests := []struct {
		name           string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]interface{})
	}{
		{
			name: "returns highest bid",
			mockSetup: func() {
				mockService.EXPECT().
					GetWinningBid("a1").
					Return(model.Bid{
						BidID:     "b2",
						AuctionID: "a1",
						UserID:    "u3",
						Amount:    180,
						CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "winning bid retrieved successfully",
			validateData: func(t *testing.T, data map[string]interface{}) {
				require.Equal(t, "b2", data["bid_id"])
				require.Equal(t, "u3", data["user_id"])
				require.Equal(t, 180.0, data["amount"])
			},
		},
		{
			name: "no bids",
			mockSetup: func() {
				mockService.EXPECT().
					GetWinningBid("a1").
					Return(model.Bid{}, auctionerrors.ErrNoBids)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "no winning bid found",
		},
		{
			name: "unknown auction",
			mockSetup: func() {
				mockService.EXPECT().
					GetWinningBid("a1").
					Return(model.Bid{}, auctionerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := performRequest(t, router, http.MethodGet, "/auctions/a1/winning", nil)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil {
				data, ok := resp["data"].(map[string]interface{})
				require.True(t, ok)
				tc.validateData(t, data)
			}
		})
	}
}
