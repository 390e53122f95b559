package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	shutdowns int
}

func (s *fakeServer) Shutdown() { s.shutdowns++ }

type registration struct {
	instance, service, domain string
	port                      int
	txt                       []string
}

func newTestAdvertiser(err error) (*Advertiser, *[]registration, *[]*fakeServer) {
	var regs []registration
	var servers []*fakeServer
	a := NewAdvertiser("")
	a.register = func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
		if err != nil {
			return nil, err
		}
		regs = append(regs, registration{instance, service, domain, port, txt})
		s := &fakeServer{}
		servers = append(servers, s)
		return s, nil
	}
	return a, &regs, &servers
}

func TestAdvertise(t *testing.T) {
	a, regs, _ := newTestAdvertiser(nil)

	err := a.Advertise(Info{Instance: "garage", Port: 8080, Switches: []string{"door", "window"}})
	require.NoError(t, err)

	require.Len(t, *regs, 1)
	r := (*regs)[0]
	assert.Equal(t, "garage", r.instance)
	assert.Equal(t, "_switch-sensor._tcp", r.service)
	assert.Equal(t, "local.", r.domain)
	assert.Equal(t, 8080, r.port)
	assert.Contains(t, r.txt, "switches=door,window")
	assert.Contains(t, r.txt, "path=/index.json")
}

func TestAdvertiseReplacesPrevious(t *testing.T) {
	a, regs, servers := newTestAdvertiser(nil)

	require.NoError(t, a.Advertise(Info{Instance: "one", Port: 80}))
	require.NoError(t, a.Advertise(Info{Instance: "two", Port: 80}))

	assert.Len(t, *regs, 2)
	assert.Equal(t, 1, (*servers)[0].shutdowns)
	assert.Equal(t, 0, (*servers)[1].shutdowns)
}

func TestShutdown(t *testing.T) {
	a, _, servers := newTestAdvertiser(nil)
	require.NoError(t, a.Advertise(Info{Instance: "garage", Port: 80}))

	a.Shutdown()
	a.Shutdown()

	assert.Equal(t, 1, (*servers)[0].shutdowns)
}

func TestShutdownWithoutAdvertise(t *testing.T) {
	a := NewAdvertiser("")
	a.Shutdown()
}

func TestAdvertiseInvalid(t *testing.T) {
	a, regs, _ := newTestAdvertiser(nil)

	assert.Error(t, a.Advertise(Info{Port: 80}))
	assert.Error(t, a.Advertise(Info{Instance: "x", Port: 0}))
	assert.Error(t, a.Advertise(Info{Instance: "x", Port: 70000}))
	assert.Empty(t, *regs)
}

func TestAdvertiseRegisterError(t *testing.T) {
	a, _, _ := newTestAdvertiser(errors.New("no multicast"))

	err := a.Advertise(Info{Instance: "garage", Port: 80})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no multicast")
}

func TestInterfacesUnknownFallsBackToAll(t *testing.T) {
	a := NewAdvertiser("does-not-exist0")
	assert.Nil(t, a.interfaces())
}

func TestPortFromAddr(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{":80", 80, false},
		{"0.0.0.0:8080", 8080, false},
		{"[::1]:9000", 9000, false},
		{"80", 0, true},
		{":http", 0, true},
	}

	for _, tt := range tests {
		got, err := PortFromAddr(tt.addr)
		if tt.wantErr {
			assert.Error(t, err, tt.addr)
			continue
		}
		require.NoError(t, err, tt.addr)
		assert.Equal(t, tt.want, got, tt.addr)
	}
}
