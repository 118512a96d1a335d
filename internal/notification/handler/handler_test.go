package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"workguard/internal/notification/handler/mocks"
	"workguard/internal/notification/models"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	adminID id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	s.adminID = id.NewUserID()

	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) request(method, path string) *http.Request {
	req := testutil.NewJSONRequest(s.T(), method, path, nil)
	return testutil.WithPrincipal(req, s.adminID, id.NewSessionID(), "ADMIN")
}

func (s *HandlerSuite) TestList() {
	s.Run("unread filter and counts", func() {
		n := &models.Notification{
			ID:        id.NewNotificationID(),
			UserID:    s.adminID,
			Type:      models.TypeMultipleLoginAttempt,
			Title:     "Multiple Login Detected",
			Priority:  models.PriorityMedium,
			CreatedAt: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		}
		s.service.EXPECT().List(gomock.Any(), s.adminID, models.ListFilter{UnreadOnly: true}).
			Return(&models.Inbox{Notifications: []*models.Notification{n}, UnreadCount: 3}, nil)

		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/notifications?unreadOnly=true"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal(true, body["success"])
		s.Equal(float64(3), body["unreadCount"])
		s.Len(body["notifications"], 1)
	})

	s.Run("malformed flag", func() {
		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/notifications?unreadOnly=maybe"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("store failure", func() {
		s.service.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed to list notifications"))
		rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/notifications"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, string(dErrors.CodeInternal))
	})
}

func (s *HandlerSuite) TestMarkRead() {
	nid := id.NewNotificationID()

	s.Run("own row", func() {
		s.service.EXPECT().MarkRead(gomock.Any(), s.adminID, nid).Return(nil)
		rr := testutil.DoRequest(s.router, s.request(http.MethodPut, "/notifications/"+nid.String()+"/read"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("someone else's row", func() {
		s.service.EXPECT().MarkRead(gomock.Any(), s.adminID, nid).
			Return(dErrors.New(dErrors.CodeNotFound, "Notification not found"))
		rr := testutil.DoRequest(s.router, s.request(http.MethodPut, "/notifications/"+nid.String()+"/read"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("malformed id", func() {
		rr := testutil.DoRequest(s.router, s.request(http.MethodPut, "/notifications/42/read"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestMarkAllRead() {
	s.service.EXPECT().MarkAllRead(gomock.Any(), s.adminID).Return(4, nil)
	rr := testutil.DoRequest(s.router, s.request(http.MethodPut, "/notifications/read-all"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "updated", float64(4))
}

func (s *HandlerSuite) TestDelete() {
	nid := id.NewNotificationID()
	s.service.EXPECT().Delete(gomock.Any(), s.adminID, nid).Return(nil)
	rr := testutil.DoRequest(s.router, s.request(http.MethodDelete, "/notifications/"+nid.String()))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}
