package irc

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
)

// ServerDescriptor identifies one IRC server endpoint. The ordered list of
// descriptors in SupervisorConfig defines failover priority.
type ServerDescriptor struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	TLS      bool   `json:"tls"`
}

func (sd ServerDescriptor) Addr() string {
	return net.JoinHostPort(sd.Hostname, strconv.Itoa(sd.Port))
}

func (sd ServerDescriptor) String() string {
	if sd.TLS {
		return "ircs://" + sd.Addr()
	}
	return "irc://" + sd.Addr()
}

type serverListFile struct {
	Servers        []ServerDescriptor `json:"servers"`
	PreferredIndex int                `json:"preferred_server_index"`
}

// LoadServersJSON reads a server list (with failover order and preferred
// index) from a JSON config file.
func LoadServersJSON(p string) ([]ServerDescriptor, int, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, err
	}

	var sl serverListFile
	if err := json.Unmarshal(raw, &sl); err != nil {
		return nil, 0, err
	}
	if len(sl.Servers) == 0 {
		return nil, 0, fmt.Errorf("server list is empty")
	}
	for i, srv := range sl.Servers {
		if srv.Hostname == "" {
			return nil, 0, fmt.Errorf("server %d: missing hostname", i)
		}
		if srv.Port <= 0 || srv.Port > 65535 {
			return nil, 0, fmt.Errorf("server %d: invalid port %d", i, srv.Port)
		}
	}
	if sl.PreferredIndex < 0 || sl.PreferredIndex >= len(sl.Servers) {
		return nil, 0, fmt.Errorf("preferred_server_index %d out of range (%d servers)", sl.PreferredIndex, len(sl.Servers))
	}
	return sl.Servers, sl.PreferredIndex, nil
}
