// Package snmpid queries the three standard identity objects (sysName,
// sysDescr, sysObjectID) over SNMP. The crawler uses it as a secondary
// source of truth: devices that could not be logged into, but answer SNMP,
// still get a hostname and platform description in the final topology.
package snmpid

import (
	"fmt"
	"strings"
	"time"

	g "github.com/gosnmp/gosnmp"

	"github.com/lukeod/gonettopo/datamodel"
	"github.com/lukeod/gonettopo/logger"
)

const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
)

// Identity is what the standard MIB-2 system group reveals about a device.
type Identity struct {
	Hostname    string
	Description string
	ObjectID    string
}

// QueryIdentity fetches the identity objects from ip using the configured
// SNMP settings. Failures are signal (the device does not speak SNMP to us),
// not errors worth aborting anything for.
func QueryIdentity(ip string, settings datamodel.SNMPIdentitySettings) (*Identity, error) {
	log := logger.WithModule("snmpid")

	params, err := buildParams(ip, settings)
	if err != nil {
		return nil, err
	}

	if err := params.Connect(); err != nil {
		return nil, fmt.Errorf("SNMP connect to %s: %w", ip, err)
	}
	defer func() {
		if params.Conn != nil {
			params.Conn.Close()
		}
	}()

	packet, err := params.Get([]string{oidSysName, oidSysDescr, oidSysObjectID})
	if err != nil {
		return nil, fmt.Errorf("SNMP get from %s: %w", ip, err)
	}
	if packet == nil {
		return nil, fmt.Errorf("SNMP get from %s returned no packet", ip)
	}

	ident := &Identity{}
	for _, variable := range packet.Variables {
		oid := strings.TrimPrefix(variable.Name, ".")
		value := octetString(variable)
		switch oid {
		case oidSysName:
			ident.Hostname = value
		case oidSysDescr:
			ident.Description = value
		case oidSysObjectID:
			ident.ObjectID = value
		}
	}

	log.Debug("SNMP identity retrieved", "ip", ip, "hostname", ident.Hostname)
	return ident, nil
}

func buildParams(ip string, settings datamodel.SNMPIdentitySettings) (*g.GoSNMP, error) {
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := settings.Retries
	if retries < 0 {
		retries = 0
	}

	params := &g.GoSNMP{
		Target:  ip,
		Port:    161,
		Timeout: timeout,
		Retries: retries,
	}

	switch strings.ToLower(settings.Version) {
	case "", "v2c":
		params.Version = g.Version2c
		params.Community = settings.Community
	case "v3":
		params.Version = g.Version3
		params.SecurityModel = g.UserSecurityModel
		usm := &g.UsmSecurityParameters{UserName: settings.Username}

		switch strings.ToLower(settings.SecurityLevel) {
		case "", "noauthnopriv":
			params.MsgFlags = g.NoAuthNoPriv
		case "authnopriv":
			params.MsgFlags = g.AuthNoPriv
		case "authpriv":
			params.MsgFlags = g.AuthPriv
		default:
			return nil, fmt.Errorf("invalid SNMPv3 security_level: %s", settings.SecurityLevel)
		}

		if params.MsgFlags == g.AuthNoPriv || params.MsgFlags == g.AuthPriv {
			usm.AuthenticationPassphrase = settings.AuthPassword
			switch strings.ToUpper(settings.AuthProtocol) {
			case "MD5":
				usm.AuthenticationProtocol = g.MD5
			case "SHA":
				usm.AuthenticationProtocol = g.SHA
			case "SHA256":
				usm.AuthenticationProtocol = g.SHA256
			case "SHA512":
				usm.AuthenticationProtocol = g.SHA512
			default:
				return nil, fmt.Errorf("unsupported SNMPv3 auth_protocol: %s", settings.AuthProtocol)
			}
		}
		if params.MsgFlags == g.AuthPriv {
			usm.PrivacyPassphrase = settings.PrivPassword
			switch strings.ToUpper(settings.PrivProtocol) {
			case "DES":
				usm.PrivacyProtocol = g.DES
			case "AES":
				usm.PrivacyProtocol = g.AES
			case "AES256":
				usm.PrivacyProtocol = g.AES256
			default:
				return nil, fmt.Errorf("unsupported SNMPv3 priv_protocol: %s", settings.PrivProtocol)
			}
		}
		params.SecurityParameters = usm
	default:
		return nil, fmt.Errorf("unsupported SNMP version: %s", settings.Version)
	}

	return params, nil
}

func octetString(v g.SnmpPDU) string {
	switch val := v.Value.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
