package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNmapXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV -oX - 192.168.1.20" startstr="Mon Mar  3 10:00:00 2025">
  <host>
    <status state="up" reason="arp-response"/>
    <address addr="192.168.1.20" addrtype="ipv4"/>
    <ports>
      <port protocol="tcp" portid="21"><state state="open" reason="syn-ack"/><service name="ftp" product="vsftpd"/></port>
      <port protocol="tcp" portid="25"><state state="filtered" reason="no-response"/><service name="smtp"/></port>
      <port protocol="tcp" portid="80"><state state="open" reason="syn-ack"/><service name="http"/></port>
      <port protocol="tcp" portid="9999"><state state="open" reason="syn-ack"/></port>
    </ports>
  </host>
  <host>
    <status state="down" reason="no-response"/>
    <ports>
      <port protocol="tcp" portid="22"><state state="open"/><service name="ssh"/></port>
    </ports>
  </host>
</nmaprun>`

func TestParseNmapXML(t *testing.T) {
	eps, err := parseNmapXML([]byte(sampleNmapXML))
	require.NoError(t, err)
	assert.Equal(t, []ports.RawEndpoint{
		{Port: 21, Service: "ftp"},
		{Port: 80, Service: "http"},
		{Port: 9999, Service: ""},
	}, eps)
}

const hostDownNmapXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV -oX - 10.9.9.9">
  <runstats>
    <finished time="1741000000" elapsed="3.05" exit="success"/>
    <hosts up="0" down="1" total="1"/>
  </runstats>
</nmaprun>`

const closedHostNmapXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV -oX - 10.0.0.7">
  <host>
    <status state="up" reason="echo-reply"/>
    <ports>
      <extraports state="closed" count="1000"/>
    </ports>
  </host>
  <runstats>
    <hosts up="1" down="0" total="1"/>
  </runstats>
</nmaprun>`

func TestParseNmapXML_HostUpWithoutOpenPorts(t *testing.T) {
	eps, err := parseNmapXML([]byte(closedHostNmapXML))
	require.NoError(t, err)
	assert.NotNil(t, eps)
	assert.Empty(t, eps)
}

func TestParseNmapXML_HostDown(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"runstats report no host up", hostDownNmapXML},
		{"empty report", `<nmaprun></nmaprun>`},
		{"only down hosts", `<nmaprun><host><status state="down"/></host></nmaprun>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eps, err := parseNmapXML([]byte(tt.xml))
			assert.ErrorIs(t, err, domain.ErrHostDown)
			assert.Nil(t, eps)
		})
	}

	_, err := parseNmapXML([]byte("not xml"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrHostDown)
}

func TestNmapProbe_UnreachableTarget(t *testing.T) {
	p := NewNmapProbe("", nil)
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(hostDownNmapXML), nil
	}
	eps, err := p.Probe(context.Background(), "10.9.9.9")
	assert.ErrorIs(t, err, domain.ErrHostDown)
	assert.ErrorContains(t, err, "10.9.9.9")
	assert.Nil(t, eps)
}

func TestNmapProbe_Args(t *testing.T) {
	p := NewNmapProbe("", nil)
	var gotName string
	var gotArgs []string
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(sampleNmapXML), nil
	}

	eps, err := p.Probe(context.Background(), "192.168.1.20")
	require.NoError(t, err)
	assert.Len(t, eps, 3)
	assert.Equal(t, "nmap", gotName)
	assert.Equal(t, []string{"-sV", "-oX", "-", "192.168.1.20"}, gotArgs)
}

func TestNmapProbe_Failure(t *testing.T) {
	p := NewNmapProbe("/usr/bin/nmap", []string{"-sV", "-T4"})
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err := p.Probe(context.Background(), "10.0.0.1")
	assert.ErrorContains(t, err, "nmap failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Probe(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShodanProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		switch r.URL.Path {
		case "/shodan/host/203.0.113.5":
			w.Write([]byte(`{"ip_str":"203.0.113.5","ports":[443,23,8080],
				"data":[{"port":23,"transport":"tcp","_shodan":{"module":"telnet"}},
				        {"port":443,"transport":"tcp","product":"nginx","_shodan":{"module":"https"}}]}`))
		case "/shodan/host/203.0.113.6":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	p := NewShodanProbe("secret", srv.URL)
	eps, err := p.Probe(context.Background(), "203.0.113.5")
	require.NoError(t, err)
	assert.Equal(t, []ports.RawEndpoint{
		{Port: 23, Service: "telnet"},
		{Port: 443, Service: "https"},
		{Port: 8080, Service: ""},
	}, eps)

	eps, err = p.Probe(context.Background(), "203.0.113.6")
	require.NoError(t, err)
	assert.Empty(t, eps)

	_, err = p.Probe(context.Background(), "203.0.113.7")
	assert.ErrorIs(t, err, ErrShodanAuth)
}

func TestTokenBucket(t *testing.T) {
	b := newTokenBucket(2, time.Second)
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	b.lastRefill = now

	ok, _ := b.take()
	assert.True(t, ok)
	ok, _ = b.take()
	assert.True(t, ok)
	ok, wait := b.take()
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	now = now.Add(1500 * time.Millisecond)
	ok, _ = b.take()
	assert.True(t, ok)
	ok, wait = b.take()
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
}

func TestMockProbe(t *testing.T) {
	p, err := NewMockProbe("camera", 0)
	require.NoError(t, err)
	eps, err := p.Probe(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, eps, 4)

	// Callers cannot mutate the shared profile.
	eps[0].Port = 1
	again, _ := p.Probe(context.Background(), "10.0.0.1")
	assert.Equal(t, 23, again[0].Port)

	empty, err := NewMockProbe("empty", 0)
	require.NoError(t, err)
	eps, err = empty.Probe(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Empty(t, eps)

	_, err = NewMockProbe("toaster", 0)
	assert.Error(t, err)
}

func TestMockProbe_RandomIsStablePerTarget(t *testing.T) {
	p, err := NewMockProbe("", 0)
	require.NoError(t, err)

	a, _ := p.Probe(context.Background(), "cam.local")
	b, _ := p.Probe(context.Background(), "cam.local")
	assert.Equal(t, a, b)
	for i := 1; i < len(a); i++ {
		assert.Less(t, a[i-1].Port, a[i].Port)
	}
}

func TestMockProbe_DelayHonoursContext(t *testing.T) {
	p, err := NewMockProbe("secure", time.Hour)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Probe(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	p, err := New("mock", Options{MockScenario: "router"})
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	p, err = New("", Options{})
	require.NoError(t, err)
	assert.Equal(t, "nmap", p.Name())

	_, err = New("shodan", Options{})
	assert.ErrorIs(t, err, ErrShodanAuth)

	_, err = New("masscan", Options{})
	assert.Error(t, err)
}
