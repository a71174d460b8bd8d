package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeready-toolchain/genforge/pkg/spec"
)

// httpDoer is the subset of *http.Client the verifier calls; tests
// substitute a fake transport rather than a whole client.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RunEndpointTests exercises spec.md §4.7's endpoint-test sequence
// against a running deployment: the auth flow (if enabled) followed by
// CREATE → LIST → READ → UPDATE → DELETE → READ-after-delete for every
// CRUD-enabled entity, threading the bearer token through every
// protected call.
func RunEndpointTests(ctx context.Context, baseURL string, s spec.Spec) VerificationReport {
	return runEndpointTests(ctx, &http.Client{Timeout: 10 * time.Second}, baseURL, s)
}

func runEndpointTests(ctx context.Context, client httpDoer, baseURL string, s spec.Spec) VerificationReport {
	var report VerificationReport

	authHeader := ""
	if s.Auth.Enabled {
		authHeader = runAuthFlow(ctx, client, baseURL, &report)
	}

	for _, entity := range s.Entities {
		if !entity.CRUD {
			continue
		}
		if s.Auth.Enabled && strings.EqualFold(entity.Name, "User") {
			continue
		}
		runEntityCRUD(ctx, client, baseURL, authHeader, entity, &report)
	}

	report.finalize()
	return report
}

func runAuthFlow(ctx context.Context, client httpDoer, baseURL string, report *VerificationReport) string {
	registerBody, _ := json.Marshal(map[string]string{
		"email":    "verify@test.com",
		"password": "TestPass123!",
	})
	doRaw(ctx, client, report, http.MethodPost, baseURL+"/auth/register", "/auth/register", http.StatusCreated, registerBody, "application/json", "")

	form := url.Values{
		"username":   {"verify@test.com"},
		"password":   {"TestPass123!"},
		"grant_type": {"password"},
	}
	_, body := doRaw(ctx, client, report, http.MethodPost, baseURL+"/auth/login", "/auth/login", http.StatusOK, []byte(form.Encode()), "application/x-www-form-urlencoded", "")
	if body == nil {
		return ""
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		report.Errors = append(report.Errors, "login succeeded but response was not valid JSON")
		return ""
	}
	token, _ := decoded["access_token"].(string)
	if token == "" {
		report.Errors = append(report.Errors, "login succeeded but no access_token in response")
		return ""
	}
	return "Bearer " + token
}

func runEntityCRUD(ctx context.Context, client httpDoer, baseURL, authHeader string, entity spec.Entity, report *VerificationReport) {
	prefix := "/" + entity.TableName
	pkName := "id"
	if pk, ok := entity.PrimaryKey(); ok {
		pkName = pk.Name
	}
	nonPKFields := nonPrimaryKeyFields(entity)

	createPayload := buildPayload(entity, false)
	createBody, _ := json.Marshal(createPayload)
	_, createRespBody := doRaw(ctx, client, report, http.MethodPost, baseURL+prefix+"/", prefix+"/", http.StatusCreated, createBody, "application/json", authHeader)

	var createdID any
	var createdData map[string]any
	if createRespBody != nil {
		_ = json.Unmarshal(createRespBody, &createdData)
		createdID = createdData[pkName]
		recordMismatches(report, http.MethodPost, prefix+"/ (data integrity)", createPayload, createdData, nonPKFields)
	}

	_, listBody := doRaw(ctx, client, report, http.MethodGet, baseURL+prefix+"/", prefix+"/", http.StatusOK, nil, "", authHeader)
	if listBody != nil && createdID != nil {
		verifyListContainsCreated(report, prefix, listBody, pkName, createdID)
	}

	if createdID == nil {
		for _, skipped := range []EndpointResult{
			{Method: http.MethodGet, Path: prefix + "/{id}", ExpectedStatus: http.StatusOK, Error: "skipped: CREATE failed"},
			{Method: http.MethodPut, Path: prefix + "/{id}", ExpectedStatus: http.StatusOK, Error: "skipped: CREATE failed"},
			{Method: http.MethodDelete, Path: prefix + "/{id}", ExpectedStatus: http.StatusNoContent, Error: "skipped: CREATE failed"},
			{Method: http.MethodGet, Path: prefix + "/{id} (after delete)", ExpectedStatus: http.StatusNotFound, Error: "skipped: CREATE failed"},
		} {
			report.record(skipped)
		}
		return
	}

	idPath := fmt.Sprintf("%s/%v", prefix, createdID)

	_, readBody := doRaw(ctx, client, report, http.MethodGet, baseURL+idPath, idPath, http.StatusOK, nil, "", authHeader)
	if readBody != nil {
		var readData map[string]any
		_ = json.Unmarshal(readBody, &readData)
		recordMismatches(report, http.MethodGet, prefix+"/{id} (data integrity)", createdData, readData, nonPKFields)
	}

	updatePayload := buildPayload(entity, true)
	updateBody, _ := json.Marshal(updatePayload)
	_, updateRespBody := doRaw(ctx, client, report, http.MethodPut, baseURL+idPath, idPath, http.StatusOK, updateBody, "application/json", authHeader)
	if updateRespBody != nil {
		var updatedData map[string]any
		_ = json.Unmarshal(updateRespBody, &updatedData)
		recordMismatches(report, http.MethodPut, prefix+"/{id} (data integrity)", updatePayload, updatedData, nonPKFields)
	}

	doRaw(ctx, client, report, http.MethodDelete, baseURL+idPath, idPath, http.StatusNoContent, nil, "", authHeader)
	doRaw(ctx, client, report, http.MethodGet, baseURL+idPath, idPath+" (after delete)", http.StatusNotFound, nil, "", authHeader)
}

func nonPrimaryKeyFields(entity spec.Entity) []string {
	var names []string
	for _, f := range entity.Fields {
		if !f.PrimaryKey {
			names = append(names, f.Name)
		}
	}
	return names
}

func buildPayload(entity spec.Entity, updated bool) map[string]any {
	payload := make(map[string]any)
	for _, f := range entity.Fields {
		if f.PrimaryKey {
			continue
		}
		payload[f.Name] = entityTestValue(f.Type, f.Name, updated)
	}
	return payload
}

func recordMismatches(report *VerificationReport, method, path string, sent, received map[string]any, fields []string) {
	var mismatches []string
	for _, key := range fields {
		sentVal, sentOK := sent[key]
		receivedVal, receivedOK := received[key]
		if !sentOK || !receivedOK {
			continue
		}
		if fmt.Sprint(sentVal) != fmt.Sprint(receivedVal) {
			mismatches = append(mismatches, fmt.Sprintf("%s: sent=%v, got=%v", key, sentVal, receivedVal))
		}
	}
	if len(mismatches) > 0 {
		report.record(EndpointResult{Method: method, Path: path, ExpectedStatus: http.StatusCreated, ActualStatus: http.StatusCreated, Error: strings.Join(mismatches, "; ")})
		return
	}
	report.record(EndpointResult{Method: method, Path: path, ExpectedStatus: http.StatusCreated, ActualStatus: http.StatusCreated})
}

func verifyListContainsCreated(report *VerificationReport, prefix string, listBody []byte, pkName string, createdID any) {
	var items []map[string]any
	if err := json.Unmarshal(listBody, &items); err != nil {
		report.record(EndpointResult{Method: http.MethodGet, Path: prefix + "/ (contains created item)", ExpectedStatus: http.StatusOK, Error: "list response was not a JSON array"})
		return
	}
	for _, item := range items {
		if fmt.Sprint(item[pkName]) == fmt.Sprint(createdID) {
			report.record(EndpointResult{Method: http.MethodGet, Path: prefix + "/ (contains created item)", ExpectedStatus: http.StatusOK, ActualStatus: http.StatusOK})
			return
		}
	}
	report.record(EndpointResult{Method: http.MethodGet, Path: prefix + "/ (contains created item)", ExpectedStatus: http.StatusOK, ActualStatus: http.StatusOK, Error: fmt.Sprintf("created item %v not found in list", createdID)})
}

// doRaw issues one HTTP call, records an EndpointResult against report
// under reportPath, and returns the response body on a 2xx/expected
// match (nil on transport error or status mismatch).
func doRaw(ctx context.Context, client httpDoer, report *VerificationReport, method, fullURL, reportPath string, expected int, body []byte, contentType, authHeader string) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		report.record(EndpointResult{Method: method, Path: reportPath, ExpectedStatus: expected, Error: err.Error()})
		return nil, nil
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		report.record(EndpointResult{Method: method, Path: reportPath, ExpectedStatus: expected, Error: err.Error()})
		return nil, nil
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		report.record(EndpointResult{Method: method, Path: reportPath, ExpectedStatus: expected, Error: err.Error()})
		return resp, nil
	}

	report.record(EndpointResult{Method: method, Path: reportPath, ExpectedStatus: expected, ActualStatus: resp.StatusCode})
	if resp.StatusCode != expected {
		return resp, nil
	}
	return resp, respBody
}
