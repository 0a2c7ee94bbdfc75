package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

var txs = []string{
	`{"blockNumber":"10","hash":"0x01","from":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","to":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","value":"1000"}`,
	`{"blockNumber":"12","hash":"0x02","from":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","to":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","value":"5"}`,
}

// newTestServer serves txs the way a txlist endpoint pages them
func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api", "secret")
}

func pagedHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "txlist", q.Get("action"))
		assert.Equal(t, "asc", q.Get("sort"))
		assert.Equal(t, "secret", q.Get("apikey"))
		assert.Equal(t, account, q.Get("address"))

		var page, offset int
		fmt.Sscan(q.Get("page"), &page)
		fmt.Sscan(q.Get("offset"), &offset)

		start := (page - 1) * offset
		if start >= len(txs) {
			fmt.Fprint(w, `{"status":"0","message":"No transactions found","result":[]}`)
			return
		}
		end := min(start+offset, len(txs))

		body := `{"status":"1","message":"OK","result":[`
		for i := start; i < end; i++ {
			if i > start {
				body += ","
			}
			body += txs[i]
		}
		fmt.Fprint(w, body+"]}")
	}
}

func TestTransactionCount(t *testing.T) {
	c := newTestServer(t, pagedHandler(t))

	count, err := c.TransactionCount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestTransactionAt(t *testing.T) {
	c := newTestServer(t, pagedHandler(t))
	ctx := context.Background()

	first, err := c.TransactionAt(ctx, account, 0)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "0x01", first.Hash)
	assert.Equal(t, int64(1000), first.Value.Int64())
	require.NotNil(t, first.BlockNumber)
	assert.Equal(t, uint64(10), *first.BlockNumber)

	second, err := c.TransactionAt(ctx, account, 1)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "0x02", second.Hash)

	missing, err := c.TransactionAt(ctx, account, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTransactionAtBeyondWindow(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.TransactionAt(context.Background(), account, MaxWindow)
	assert.ErrorContains(t, err, "beyond the indexer window")
}

func TestIndexerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"notok", http.StatusOK, `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`, "Invalid API Key"},
		{"http", http.StatusBadGateway, `upstream down`, "HTTP error 502"},
		{"garbage", http.StatusOK, `{"status":`, "error decoding response"},
		{"bad value", http.StatusOK, `{"status":"1","message":"OK","result":[{"hash":"0x09","value":"lots"}]}`, "invalid value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.TransactionAt(context.Background(), account, 0)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuildURLWithParams(t *testing.T) {
	assert.Equal(t, "http://x/api", BuildURLWithParams("http://x/api", nil))
	assert.Equal(t, "http://x/api?a=1&b=2", BuildURLWithParams("http://x/api?b=2", map[string]string{"a": "1"}))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "http://x/api?apikey=%2A%2A%2A&page=1", redact("http://x/api?apikey=secret&page=1"))
	assert.Equal(t, "http://x/api?page=1", redact("http://x/api?page=1"))
}
