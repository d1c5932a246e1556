// Package cert wraps the TLS certificate auth method.
//
// Every function takes an api.Client and the mount path the method is
// enabled at (usually "cert"). Reads of named objects return (nil, nil)
// when the object does not exist; lists of an empty mount return a nil
// slice and a nil error.
//
//	c, _ := client.New("https://vault.example.com:8200",
//	    client.WithMTLS("client.crt", "client.key", "ca.crt"))
//	info, err := cert.Login(ctx, c, "cert", "web")
//	if err != nil {
//	    return err
//	}
//	c.SetToken(info.ClientToken)
package cert
