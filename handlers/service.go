package handlers

import (
	"crypto/rand"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/reqctx"
	"github.com/blobemu/blobemu/storage/metadata"
	"github.com/blobemu/blobemu/xmlcodec"
)

// ListContainers implements Get Service List Containers (spec §4.6).
func (h *Handlers) ListContainers(w http.ResponseWriter, ctx *reqctx.Context) error {
	items, nextMarker := h.Store.ListContainers(ctx.Account, ctx.Prefix(), ctx.Marker(), ctx.MaxResults())
	out := make([]xmlcodec.ContainerItem, 0, len(items))
	for _, c := range items {
		st := c.Lease.State(time.Now())
		out = append(out, xmlcodec.ContainerItemFrom(c.Name, c.LastModified, c.ETag, st.Status(), st, c.PublicAccess, c.Metadata))
	}
	body := xmlcodec.EncodeListContainers(ctx.ServiceEndpoint(), ctx.Prefix(), ctx.Marker(), ctx.MaxResults(), out, nextMarker)
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

// GetServiceProperties implements Get Blob Service Properties (spec §4.9).
func (h *Handlers) GetServiceProperties(w http.ResponseWriter, ctx *reqctx.Context) error {
	p := h.Store.ServiceProperties(ctx.Account)
	body := xmlcodec.EncodeServiceProperties(toServicePropertiesXML(p))
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

// SetServiceProperties implements Set Blob Service Properties (spec §4.9).
func (h *Handlers) SetServiceProperties(w http.ResponseWriter, ctx *reqctx.Context) error {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	parsed, err := xmlcodec.DecodeServiceProperties(body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	h.Store.SetServiceProperties(ctx.Account, fromServicePropertiesXML(parsed))
	writeStatus(w, ctx, http.StatusAccepted)
	return nil
}

// GetServiceStats implements Get Blob Service Stats — this single-process
// emulator has no secondary region, so it always reports live/available
// (spec's Non-goals exclude geo-replication simulation; the operation
// itself is still wired so SDK calls to it succeed).
func (h *Handlers) GetServiceStats(w http.ResponseWriter, ctx *reqctx.Context) error {
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xmlHeaderStats))
	return nil
}

const xmlHeaderStats = `<?xml version="1.0" encoding="utf-8"?>` + "\n" +
	`<StorageServiceStats><GeoReplication><Status>live</Status></GeoReplication></StorageServiceStats>`

// delegationSigningKey is a process-local secret the emulator signs
// synthetic user-delegation JWTs with; it never needs to be shared since
// this single process both mints and would validate such a key.
var delegationSigningKey = randomKey()

func randomKey() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return b
}

// UserDelegationKey implements Get User Delegation Key (spec §1
// "OAuth2/user-delegation"): the key material is a JWT whose claims record
// the account and validity window, signed with the process's own key, so
// the "key" is both opaque and internally verifiable without a database of
// issued keys.
func (h *Handlers) UserDelegationKey(w http.ResponseWriter, ctx *reqctx.Context) error {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	info, err := xmlcodec.DecodeKeyInfo(body)
	if err != nil {
		return cmn.NewErr(cmn.ErrInvalidXMLDocument).Wrap(err)
	}
	start, err := cmn.ParseSASTime(info.Start)
	if err != nil {
		return cmn.NewErrMsg(cmn.ErrInvalidXMLDocument, "invalid Start: %v", err)
	}
	expiry, err := cmn.ParseSASTime(info.Expiry)
	if err != nil {
		return cmn.NewErrMsg(cmn.ErrInvalidXMLDocument, "invalid Expiry: %v", err)
	}
	claims := jwt.MapClaims{
		"account": ctx.Account,
		"nbf":     start.Unix(),
		"exp":     expiry.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(delegationSigningKey)
	if err != nil {
		return cmn.NewErr(cmn.ErrInternalError).Wrap(err)
	}
	resp := xmlcodec.UserDelegationKeyXML{
		SignedOID:     "00000000-0000-0000-0000-000000000000",
		SignedTID:     "00000000-0000-0000-0000-000000000000",
		SignedStart:   cmn.FormatSnapshotTime(start),
		SignedExpiry:  cmn.FormatSnapshotTime(expiry),
		SignedService: "b",
		SignedVersion: cmn.APIVersion,
		Value:         signed,
	}
	body2 := xmlcodec.EncodeUserDelegationKey(resp)
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body2)
	return nil
}

// Batch implements Blob Batch as a canned multipart shell: each
// sub-request in the batch body would need its own dispatch round-trip,
// which the simplified single-account emulator doesn't offer — the
// operation is wired (SDKs that probe for Batch support get a well-formed
// multipart/mixed response) rather than fully interpreting each
// sub-request, per SPEC_FULL.md's SUPPLEMENTED FEATURES decision on Batch.
func (h *Handlers) Batch(w http.ResponseWriter, ctx *reqctx.Context) error {
	const boundary = "batchresponse_00000000-0000-0000-0000-000000000000"
	writeStandardHeaders(w, ctx)
	w.Header().Set(cmn.HdrContentType, "multipart/mixed; boundary="+boundary)
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("--" + boundary + "--\r\n"))
	return nil
}

func toServicePropertiesXML(p *metadata.ServiceProperties) xmlcodec.ServicePropertiesXML {
	out := xmlcodec.ServicePropertiesXML{
		DefaultServiceVersion: p.DefaultServiceVersion,
		Logging: &xmlcodec.LoggingXML{
			Version: p.Logging.Version,
			Delete:  p.Logging.Delete,
			Read:    p.Logging.Read,
			Write:   p.Logging.Write,
			RetentionPolicy: xmlcodec.RetentionXML{
				Enabled: p.Logging.RetentionPolicyEnabled, Days: p.Logging.RetentionDays,
			},
		},
		HourMetrics: &xmlcodec.MetricsXML{
			Version: p.HourMetrics.Version, Enabled: p.HourMetrics.Enabled,
			RetentionPolicy: xmlcodec.RetentionXML{
				Enabled: p.HourMetrics.RetentionPolicyEnabled, Days: p.HourMetrics.RetentionDays,
			},
		},
		MinuteMetrics: &xmlcodec.MetricsXML{
			Version: p.MinuteMetrics.Version, Enabled: p.MinuteMetrics.Enabled,
			RetentionPolicy: xmlcodec.RetentionXML{
				Enabled: p.MinuteMetrics.RetentionPolicyEnabled, Days: p.MinuteMetrics.RetentionDays,
			},
		},
		DeleteRetentionPolicy: &xmlcodec.RetentionXML{Enabled: p.DeleteRetention.Enabled, Days: p.DeleteRetention.Days},
		StaticWebsite: &xmlcodec.StaticSiteXML{
			Enabled: p.StaticWebsite.Enabled, IndexDocument: p.StaticWebsite.IndexDocument,
			ErrorDocument404: p.StaticWebsite.ErrorDocument404,
		},
	}
	if len(p.Cors) > 0 {
		cors := &xmlcodec.CorsXML{}
		for _, r := range p.Cors {
			cors.Rules = append(cors.Rules, xmlcodec.CorsRuleXML{
				AllowedOrigins:  joinComma(r.AllowedOrigins),
				AllowedMethods:  joinComma(r.AllowedMethods),
				AllowedHeaders:  joinComma(r.AllowedHeaders),
				ExposedHeaders:  joinComma(r.ExposedHeaders),
				MaxAgeInSeconds: r.MaxAgeInSeconds,
			})
		}
		out.Cors = cors
	}
	return out
}

func fromServicePropertiesXML(x xmlcodec.ServicePropertiesXML) *metadata.ServiceProperties {
	p := metadata.DefaultServiceProperties()
	p.DefaultServiceVersion = x.DefaultServiceVersion
	if x.Logging != nil {
		p.Logging = metadata.LoggingConfig{
			Version: x.Logging.Version, Delete: x.Logging.Delete, Read: x.Logging.Read, Write: x.Logging.Write,
			RetentionPolicyEnabled: x.Logging.RetentionPolicy.Enabled, RetentionDays: x.Logging.RetentionPolicy.Days,
		}
	}
	if x.HourMetrics != nil {
		p.HourMetrics = metadata.MetricsConfig{
			Version: x.HourMetrics.Version, Enabled: x.HourMetrics.Enabled,
			RetentionPolicyEnabled: x.HourMetrics.RetentionPolicy.Enabled, RetentionDays: x.HourMetrics.RetentionPolicy.Days,
		}
	}
	if x.MinuteMetrics != nil {
		p.MinuteMetrics = metadata.MetricsConfig{
			Version: x.MinuteMetrics.Version, Enabled: x.MinuteMetrics.Enabled,
			RetentionPolicyEnabled: x.MinuteMetrics.RetentionPolicy.Enabled, RetentionDays: x.MinuteMetrics.RetentionPolicy.Days,
		}
	}
	if x.DeleteRetentionPolicy != nil {
		p.DeleteRetention = metadata.DeleteRetentionPolicy{Enabled: x.DeleteRetentionPolicy.Enabled, Days: x.DeleteRetentionPolicy.Days}
	}
	if x.StaticWebsite != nil {
		p.StaticWebsite = metadata.StaticWebsiteConfig{
			Enabled: x.StaticWebsite.Enabled, IndexDocument: x.StaticWebsite.IndexDocument,
			ErrorDocument404: x.StaticWebsite.ErrorDocument404,
		}
	}
	if x.Cors != nil {
		for _, r := range x.Cors.Rules {
			p.Cors = append(p.Cors, metadata.CorsRule{
				AllowedOrigins:  splitCSV(r.AllowedOrigins),
				AllowedMethods:  splitCSV(r.AllowedMethods),
				AllowedHeaders:  splitCSV(r.AllowedHeaders),
				ExposedHeaders:  splitCSV(r.ExposedHeaders),
				MaxAgeInSeconds: r.MaxAgeInSeconds,
			})
		}
	}
	return p
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
