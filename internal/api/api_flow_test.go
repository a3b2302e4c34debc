package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/api"
	"github.com/Subicson333/verify/internal/exceptions"
	"github.com/Subicson333/verify/internal/lifecycle"
	"github.com/Subicson333/verify/internal/storage"
)

var _ = Describe("Vendor driven case over HTTP", Ordered, func() {
	var (
		server *httptest.Server
		caseID string
	)

	clock := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	call := func(method, path, body string) (int, map[string]any) {
		req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		resp, err := server.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		out := map[string]any{}
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		return resp.StatusCode, out
	}

	BeforeAll(func() {
		svc := lifecycle.NewService(storage.NewMemoryStore(), lifecycle.NewManager(lifecycle.WithClock(clock)), zap.NewNop())
		h := api.NewHandler(svc, exceptions.NewDetector(3, exceptions.DefaultStalledAfterDays, clock), nil, zap.NewNop())
		server = httptest.NewServer(api.NewRouter(h))
		DeferCleanup(server.Close)
	})

	It("creates a case from the first vendor result", func() {
		code, body := call(http.MethodPost, "/cases/webhook/vendor", `{
			"vendor": "checkr",
			"vendorReference": "ID-77",
			"checkType": "IDENTITY_VERIFICATION",
			"status": "COMPLETED_CLEAR",
			"vendorData": {"orderId": "ORD-77", "candidateName": "Ali Khan", "candidateEmail": "ali@example.com", "startDate": "2026-03-04"}
		}`)
		Expect(code).To(Equal(http.StatusCreated))
		Expect(body["created"]).To(BeTrue())
		caseID = body["caseId"].(string)
		Expect(caseID).NotTo(BeEmpty())
	})

	It("reports the case as at SLA risk", func() {
		code, body := call(http.MethodGet, "/cases/"+caseID+"/", "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(body["slaRisk"]).To(BeTrue())
		Expect(body["display"]).To(HaveKey("slaRiskLabel"))
	})

	It("moves to review when the criminal search needs a look", func() {
		code, _ := call(http.MethodPatch, "/cases/"+caseID+"/checks/CRIMINAL_HISTORY_CHECK",
			`{"status":"IN_PROGRESS","vendorReference":"CR-77","updatedBy":"ops@example.com"}`)
		Expect(code).To(Equal(http.StatusOK))

		code, body := call(http.MethodPost, "/cases/webhook/vendor",
			`{"vendor":"checkr","vendorReference":"CR-77","status":"COMPLETED_REVIEW"}`)
		Expect(code).To(Equal(http.StatusOK))
		Expect(body["created"]).To(BeFalse())
		Expect(body["case"]).To(HaveKeyWithValue("overallStatus", "COMPLETED_REVIEW"))
	})

	It("summarises the checklist", func() {
		code, body := call(http.MethodGet, "/cases/"+caseID+"/checklist-summary", "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("caseId", caseID))
		Expect(body).To(HaveKeyWithValue("total", 5.0))
		Expect(body).To(HaveKeyWithValue("completed", 2.0))
		Expect(body).To(HaveKeyWithValue("clear", 1.0))
		Expect(body).To(HaveKeyWithValue("needsReview", 1.0))
		Expect(body).To(HaveKeyWithValue("pending", 3.0))
	})

	It("records the admin decision", func() {
		code, body := call(http.MethodPost, "/cases/"+caseID+"/admin-decision",
			`{"decision":"NEEDS_REVIEW","reasoning":"record found","decidedBy":"admin@example.com"}`)
		Expect(code).To(Equal(http.StatusOK))
		Expect(body["adminDecision"]).To(Equal("NEEDS_REVIEW"))
	})

	It("rejects verification submissions without object storage", func() {
		code, body := call(http.MethodPost, "/cases/verification-submissions", `{"caseId":"`+caseID+`"}`)
		Expect(code).To(Equal(http.StatusServiceUnavailable))
		Expect(body).To(HaveKey("error"))
	})
})
