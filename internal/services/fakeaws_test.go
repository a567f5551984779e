package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// fakeAWS answers AWS JSON 1.1 requests for Secrets Manager and SSM.
type fakeAWS struct {
	secrets    map[string]string
	parameters map[string]string
	pageSize   int
	calls      int32

	mu       sync.Mutex
	pending  map[string]pendingSecret // secret id -> AWSPENDING version
	current  map[string]string        // secret id -> AWSCURRENT version id
	promoted []string                 // version ids moved to AWSCURRENT
}

// seededVersionID labels secrets placed in the fake without a version id.
const seededVersionID = "seeded"

// currentVersion must be called with f.mu held.
func (f *fakeAWS) currentVersion(id string) string {
	if versionID, ok := f.current[id]; ok {
		return versionID
	}
	if _, ok := f.secrets[id]; ok {
		return seededVersionID
	}
	return ""
}

func (f *fakeAWS) promotedVersions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.promoted...)
}

func writeAWSError(w http.ResponseWriter, code, message string) {
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"__type": code, "message": message})
}

type pendingSecret struct {
	versionID string
	value     string
}

func (f *fakeAWS) secret(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.secrets[id]
	return value, ok
}

func (f *fakeAWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()

	var input map[string]any
	_ = json.NewDecoder(r.Body).Decode(&input)

	w.Header().Set("Content-Type", "application/x-amz-json-1.1")

	switch target := r.Header.Get("X-Amz-Target"); target {
	case "secretsmanager.GetSecretValue":
		id, _ := input["SecretId"].(string)
		value, ok := f.secrets[id]
		if stage, _ := input["VersionStage"].(string); stage == "AWSPENDING" {
			var p pendingSecret
			p, ok = f.pending[id]
			value = p.value
		}
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"__type":  "ResourceNotFoundException",
				"message": "Secrets Manager can't find the specified secret.",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"Name": id, "SecretString": value})

	case "secretsmanager.PutSecretValue":
		id, _ := input["SecretId"].(string)
		versionID, _ := input["ClientRequestToken"].(string)
		value, _ := input["SecretString"].(string)
		if f.pending == nil {
			f.pending = map[string]pendingSecret{}
		}
		f.pending[id] = pendingSecret{versionID: versionID, value: value}
		json.NewEncoder(w).Encode(map[string]any{"Name": id, "VersionId": versionID})

	case "secretsmanager.DescribeSecret":
		id, _ := input["SecretId"].(string)
		stages := map[string][]string{}
		if versionID := f.currentVersion(id); versionID != "" {
			stages[versionID] = []string{"AWSCURRENT"}
		}
		if p, ok := f.pending[id]; ok {
			stages[p.versionID] = append(stages[p.versionID], "AWSPENDING")
		}
		if len(stages) == 0 {
			writeAWSError(w, "ResourceNotFoundException", "Secrets Manager can't find the specified secret.")
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"Name": id, "VersionIdsToStages": stages})

	case "secretsmanager.UpdateSecretVersionStage":
		id, _ := input["SecretId"].(string)
		stage, _ := input["VersionStage"].(string)
		moveTo, _ := input["MoveToVersionId"].(string)
		removeFrom, _ := input["RemoveFromVersionId"].(string)
		p, ok := f.pending[id]
		switch {
		case stage == "AWSCURRENT":
			// the stage must be removed from the version that holds it
			if removeFrom != f.currentVersion(id) {
				writeAWSError(w, "InvalidParameterException", "AWSCURRENT is not attached to version "+removeFrom)
				return
			}
			if !ok || p.versionID != moveTo {
				writeAWSError(w, "InvalidParameterException", "no such version "+moveTo)
				return
			}
			if f.secrets == nil {
				f.secrets = map[string]string{}
			}
			if f.current == nil {
				f.current = map[string]string{}
			}
			f.secrets[id] = p.value
			f.current[id] = moveTo
			f.promoted = append(f.promoted, moveTo)
			delete(f.pending, id)
		case stage == "AWSPENDING" && moveTo == "" && ok && p.versionID == removeFrom:
			delete(f.pending, id)
		default:
			writeAWSError(w, "InvalidParameterException", "no such version")
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"Name": id})

	case "AmazonSSM.GetParametersByPath":
		path, _ := input["Path"].(string)
		var names []string
		for name := range f.parameters {
			if strings.HasPrefix(name, path+"/") {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		start := 0
		if token, ok := input["NextToken"].(string); ok {
			start = len(token)
		}
		end := len(names)
		if f.pageSize > 0 && start+f.pageSize < end {
			end = start + f.pageSize
		}
		var params []map[string]string
		for _, name := range names[start:end] {
			params = append(params, map[string]string{"Name": name, "Value": f.parameters[name], "Type": "String"})
		}
		output := map[string]any{"Parameters": params}
		if end < len(names) {
			output["NextToken"] = strings.Repeat("x", end)
		}
		json.NewEncoder(w).Encode(output)

	case "AmazonSSM.GetParameter":
		name, _ := input["Name"].(string)
		value, ok := f.parameters[name]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"__type": "ParameterNotFound", "message": name})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"Parameter": map[string]string{"Name": name, "Value": value, "Type": "String"}})

	default:
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"__type": "UnknownOperationException", "message": target})
	}
}

func newFakeAWSConfig(t *testing.T, fake *fakeAWS) aws.Config {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return aws.Config{
		Region:           "us-east-1",
		Credentials:      credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint:     aws.String(srv.URL),
		HTTPClient:       srv.Client(),
		RetryMaxAttempts: 1,
	}
}

func newFakeSecretsManager(t *testing.T, fake *fakeAWS) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(newFakeAWSConfig(t, fake))
}

func newFakeSSM(t *testing.T, fake *fakeAWS) *ssm.Client {
	return ssm.NewFromConfig(newFakeAWSConfig(t, fake))
}
