package config

// Overrides carries command-line values for the current process. A nil
// field was not supplied and leaves the file value intact. Key and
// certificate are independent.
type Overrides struct {
	Host    *string
	TLSKey  *string
	TLSCert *string
}

// String returns a pointer to s for building Overrides.
func String(s string) *string {
	return &s
}

// IsZero reports whether no override was supplied.
func (o Overrides) IsZero() bool {
	return o.Host == nil && o.TLSKey == nil && o.TLSCert == nil
}

// Merge returns file with the supplied overrides applied. It has no side
// effects: file and its slices and maps are not modified.
func Merge(file Config, o Overrides) Config {
	merged := file
	merged.Routes = append([]RouteDeclaration(nil), file.Routes...)
	merged.ErrorPages = cloneMap(file.ErrorPages)
	merged.InsertHeaders = cloneMap(file.InsertHeaders)
	merged.Templates.Extensions = append([]string(nil), file.Templates.Extensions...)

	if o.Host != nil {
		merged.Server.Host = *o.Host
	}
	if o.TLSKey != nil {
		merged.Server.TLS.Key = *o.TLSKey
	}
	if o.TLSCert != nil {
		merged.Server.TLS.Cert = *o.TLSCert
	}

	return merged
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
