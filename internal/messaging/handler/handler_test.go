package handler

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"marketroles/internal/accountingpoint/query"
	"marketroles/internal/messaging/cim"
	"marketroles/internal/messaging/handler/mocks"
	"marketroles/internal/messaging/ingestion"
	dErrors "marketroles/pkg/domain-errors"
	"marketroles/pkg/requestcontext"
	"marketroles/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Ingestion,Query
type MessageHandlerSuite struct {
	suite.Suite
	ingestion *mocks.MockIngestion
	query     *mocks.MockQuery
	router    http.Handler
	actor     requestcontext.MarketActor
}

func TestMessageHandlerSuite(t *testing.T) {
	suite.Run(t, new(MessageHandlerSuite))
}

func (s *MessageHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ingestion = mocks.NewMockIngestion(ctrl)
	s.query = mocks.NewMockQuery(ctrl)
	s.actor = requestcontext.MarketActor{GLN: "5799999933318", Roles: []string{cim.RoleEnergySupplier}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.ingestion, s.query, logger, 64)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *MessageHandlerSuite) authenticated(req *http.Request) *http.Request {
	return testutil.WithActor(req, s.actor.GLN, s.actor.Roles...)
}

func (s *MessageHandlerSuite) TestAcceptedDocumentReturnsReceipt() {
	receipt := &ingestion.Receipt{
		MessageID:    "msg-1",
		DocumentKind: cim.KindRequestChangeOfSupplier,
		Transactions: []ingestion.TransactionOutcome{{TransactionID: "tx-1", Status: ingestion.StatusAccepted}},
	}
	s.ingestion.EXPECT().
		Receive(gomock.Any(), s.actor, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ requestcontext.MarketActor, body io.Reader) (*ingestion.Receipt, error) {
			data, err := io.ReadAll(body)
			s.Require().NoError(err)
			s.Equal("<doc/>", string(data))
			return receipt, nil
		})

	req := s.authenticated(testutil.NewXMLRequest(s.T(), http.MethodPost, "/messages", "<doc/>"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
	got := testutil.UnmarshalResponse[ingestion.Receipt](s.T(), rr)
	s.Equal("msg-1", got.MessageID)
	s.Equal("tx-1", got.Transactions[0].TransactionID)
}

func (s *MessageHandlerSuite) TestRejectedDocumentReturnsXMLErrors() {
	s.ingestion.EXPECT().Receive(gomock.Any(), s.actor, gomock.Any()).Return(&ingestion.Receipt{
		MessageID: "msg-1",
		Errors: []cim.ValidationError{
			{Code: cim.CodeDuplicateMessageID, Message: "message id msg-1 was used before"},
		},
	}, nil)

	req := s.authenticated(testutil.NewXMLRequest(s.T(), http.MethodPost, "/messages", "<doc/>"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	s.Equal("application/xml", rr.Header().Get("Content-Type"))
	var body xmlError
	s.Require().NoError(xml.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal("msg-1", body.MessageID)
	s.Require().Len(body.Details, 1)
	s.Equal(string(cim.CodeDuplicateMessageID), body.Details[0].Code)
}

func (s *MessageHandlerSuite) TestUnauthenticatedRequests() {
	rr := testutil.DoRequest(s.router, testutil.NewXMLRequest(s.T(), http.MethodPost, "/messages", "<doc/>"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/accountingpoints/571313100000000010"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *MessageHandlerSuite) TestOversizedBody() {
	req := s.authenticated(testutil.NewXMLRequest(s.T(), http.MethodPost, "/messages", strings.Repeat("x", 65)))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusRequestEntityTooLarge, "request_too_large")
}

func (s *MessageHandlerSuite) TestIngestionFailureIsInternalError() {
	s.ingestion.EXPECT().Receive(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	req := s.authenticated(testutil.NewXMLRequest(s.T(), http.MethodPost, "/messages", "<doc/>"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	s.NotContains(rr.Body.String(), "connection refused")
}

func (s *MessageHandlerSuite) TestGetAccountingPoint() {
	tests := []struct {
		name   string
		view   *query.View
		err    error
		status int
	}{
		{name: "found", view: &query.View{GsrnNumber: "571313100000000010", PhysicalState: "connected"}, status: http.StatusOK},
		{name: "not found", err: dErrors.New(dErrors.CodeNotFound, "accounting point not found"), status: http.StatusNotFound},
		{name: "invalid gsrn", err: dErrors.New(dErrors.CodeBadRequest, "invalid GSRN number"), status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.query.EXPECT().AccountingPoint(gomock.Any(), "571313100000000010").Return(tt.view, tt.err)

			req := s.authenticated(testutil.NewRequest(s.T(), http.MethodGet, "/accountingpoints/571313100000000010"))
			rr := testutil.DoRequest(s.router, req)

			testutil.AssertStatus(s.T(), rr, tt.status)
			if tt.view != nil {
				got := testutil.UnmarshalResponse[query.View](s.T(), rr)
				s.Equal("connected", got.PhysicalState)
			}
		})
	}
}
