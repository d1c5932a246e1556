package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/certauth/pkg/api"
	"github.com/jmerrifield20/certauth/pkg/auth/cert"
)

// ── config ───────────────────────────────────────────────────────────────────

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or write the auth method configuration",
}

var configReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the method configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		cfg, err := cert.ReadConfig(cmd.Context(), c, mount())
		if err != nil {
			return err
		}
		if cfg == nil {
			return fmt.Errorf("no configuration at mount %q", mount())
		}
		if viper.GetString("format") == "json" {
			return printJSON(cfg)
		}
		fmt.Printf("Disable binding:                %t\n", cfg.DisableBinding)
		fmt.Printf("Identity alias metadata:        %t\n", cfg.EnableIdentityAliasMetadata)
		fmt.Printf("OCSP cache size:                %d\n", cfg.OCSPCacheSize)
		fmt.Printf("Role cache size:                %d\n", cfg.RoleCacheSize)
		return nil
	},
}

var configWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Change method settings; only flags given are sent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		req := &cert.ConfigureRequest{}
		if f.Changed("disable-binding") {
			v, _ := f.GetBool("disable-binding")
			req.DisableBinding = api.Some(v)
		}
		if f.Changed("enable-identity-alias-metadata") {
			v, _ := f.GetBool("enable-identity-alias-metadata")
			req.EnableIdentityAliasMetadata = api.Some(v)
		}
		if f.Changed("ocsp-cache-size") {
			v, _ := f.GetUint32("ocsp-cache-size")
			req.OCSPCacheSize = api.Some(v)
		}
		if f.Changed("role-cache-size") {
			v, _ := f.GetInt("role-cache-size")
			req.RoleCacheSize = api.Some(v)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if err := cert.Configure(cmd.Context(), c, mount(), req); err != nil {
			return err
		}
		fmt.Println("Configuration written.")
		return nil
	},
}

func init() {
	f := configWriteCmd.Flags()
	f.Bool("disable-binding", false, "allow re-authentication without presenting the login certificate")
	f.Bool("enable-identity-alias-metadata", false, "attach certificate metadata to identity aliases")
	f.Uint32("ocsp-cache-size", 100, "number of OCSP responses to cache")
	f.Int("role-cache-size", 200, "number of roles to cache; -1 disables")
	configCmd.AddCommand(configReadCmd, configWriteCmd)
}

// ── login ────────────────────────────────────────────────────────────────────

var loginTokenOnly bool

var loginCmd = &cobra.Command{
	Use:   "login [role]",
	Short: "Log in with the configured client certificate",
	Long: `Login presents the client certificate from --cert-dir or
VAULT_CLIENT_CERT/VAULT_CLIENT_KEY and prints the resulting token. Without
a role name every role on the mount is tried.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var role string
		if len(args) == 1 {
			role = args[0]
		}
		info, err := cert.Login(cmd.Context(), c, mount(), role)
		if err != nil {
			if api.CodeOf(err) == api.CodeUnauthenticated {
				return fmt.Errorf("login rejected: %w", err)
			}
			return err
		}

		switch {
		case loginTokenOnly:
			fmt.Println(info.ClientToken)
		case viper.GetString("format") == "json":
			return printJSON(info)
		default:
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "token\t%s\n", info.ClientToken)
			fmt.Fprintf(w, "token_accessor\t%s\n", info.Accessor)
			fmt.Fprintf(w, "token_duration\t%s\n", info.TTL())
			fmt.Fprintf(w, "token_renewable\t%t\n", info.Renewable)
			fmt.Fprintf(w, "token_policies\t%s\n", strings.Join(info.Policies, ","))
			keys := make([]string, 0, len(info.Metadata))
			for k := range info.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "token_meta_%s\t%s\n", k, info.Metadata[k])
			}
			return w.Flush()
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginTokenOnly, "token-only", false, "print only the token")
}

// ── role ─────────────────────────────────────────────────────────────────────

var roleCmd = &cobra.Command{
	Use:     "role",
	Aliases: []string{"certs"},
	Short:   "Manage trusted certificate roles",
}

var roleCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create or update a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		certPath, _ := f.GetString("certificate")
		pemData, err := readFileArg(certPath)
		if err != nil {
			return err
		}
		req := &cert.CreateRoleRequest{Certificate: pemData}

		if f.Changed("display-name") {
			v, _ := f.GetString("display-name")
			req.DisplayName = api.Some(v)
		}
		if f.Changed("allowed-names") {
			v, _ := f.GetStringSlice("allowed-names")
			req.AllowedNames = api.Some(strings.Join(v, ","))
		}
		if f.Changed("allowed-common-names") {
			v, _ := f.GetStringSlice("allowed-common-names")
			req.AllowedCommonNames = api.Some(v)
		}
		if f.Changed("allowed-dns-sans") {
			v, _ := f.GetStringSlice("allowed-dns-sans")
			req.AllowedDNSSANs = api.Some(v)
		}
		if f.Changed("required-extensions") {
			v, _ := f.GetStringSlice("required-extensions")
			req.RequiredExtensions = api.Some(v)
		}
		if f.Changed("policies") {
			v, _ := f.GetStringSlice("policies")
			req.TokenPolicies = api.Some(v)
		}
		if f.Changed("token-ttl") {
			v, _ := f.GetDuration("token-ttl")
			req.TokenTTL = api.Some(v.String())
		}
		if f.Changed("token-max-ttl") {
			v, _ := f.GetDuration("token-max-ttl")
			req.TokenMaxTTL = api.Some(v.String())
		}
		if f.Changed("ocsp-enabled") {
			v, _ := f.GetBool("ocsp-enabled")
			req.OCSPEnabled = api.Some(v)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if err := cert.CreateRole(cmd.Context(), c, mount(), args[0], req); err != nil {
			return err
		}
		fmt.Printf("Role %q written.\n", args[0])
		return nil
	},
}

var roleReadCmd = &cobra.Command{
	Use:   "read <name>",
	Short: "Print a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		role, err := cert.ReadRole(cmd.Context(), c, mount(), args[0])
		if err != nil {
			return err
		}
		if role == nil {
			return fmt.Errorf("role %q not found", args[0])
		}
		if viper.GetString("format") == "json" {
			return printJSON(role)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "display_name\t%s\n", role.DisplayName)
		fmt.Fprintf(w, "policies\t%s\n", role.Policies)
		fmt.Fprintf(w, "allowed_names\t%s\n", role.AllowedNames)
		fmt.Fprintf(w, "required_extensions\t%s\n", role.RequiredExtensions)
		fmt.Fprintf(w, "token_ttl\t%d\n", role.TokenTTL)
		fmt.Fprintf(w, "token_max_ttl\t%d\n", role.TokenMaxTTL)
		fmt.Fprintf(w, "certificate\t%s\n", strings.TrimSpace(role.Certificate))
		return w.Flush()
	},
}

var roleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List role names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		keys, err := cert.ListRoles(cmd.Context(), c, mount())
		if err != nil {
			return err
		}
		return printKeys(keys)
	},
}

var roleDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := cert.DeleteRole(cmd.Context(), c, mount(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Role %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	f := roleCreateCmd.Flags()
	f.String("certificate", "", "PEM file with the trusted CA certificate (- for stdin)")
	f.String("display-name", "", "display name for tokens issued by this role")
	f.StringSlice("allowed-names", nil, "glob patterns matched against the certificate's names")
	f.StringSlice("allowed-common-names", nil, "allowed subject common names")
	f.StringSlice("allowed-dns-sans", nil, "allowed DNS subject alternative names")
	f.StringSlice("required-extensions", nil, "extensions the certificate must carry, as oid:value")
	f.StringSlice("policies", nil, "policies attached to issued tokens")
	f.Duration("token-ttl", 0, "initial token TTL")
	f.Duration("token-max-ttl", 0, "maximum token TTL")
	f.Bool("ocsp-enabled", false, "check revocation over OCSP")
	_ = roleCreateCmd.MarkFlagRequired("certificate")

	roleCmd.AddCommand(roleCreateCmd, roleReadCmd, roleListCmd, roleDeleteCmd)
}

// ── crl ──────────────────────────────────────────────────────────────────────

var crlCmd = &cobra.Command{
	Use:   "crl",
	Short: "Manage certificate revocation lists",
}

var crlCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Store a CRL; certificates it lists can no longer log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("crl")
		data, err := readFileArg(path)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := cert.CreateCRL(cmd.Context(), c, mount(), args[0], data); err != nil {
			return err
		}
		fmt.Printf("CRL %q written.\n", args[0])
		return nil
	},
}

var crlReadCmd = &cobra.Command{
	Use:   "read <name>",
	Short: "Print the serial numbers a CRL revokes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		crl, err := cert.ReadCRL(cmd.Context(), c, mount(), args[0])
		if err != nil {
			return err
		}
		if crl == nil {
			return fmt.Errorf("CRL %q not found", args[0])
		}
		serials := make([]string, 0, len(crl.Serials))
		for s := range crl.Serials {
			serials = append(serials, s)
		}
		sort.Strings(serials)
		return printKeys(serials)
	},
}

var crlListCmd = &cobra.Command{
	Use:   "list",
	Short: "List CRL names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		keys, err := cert.ListCRLs(cmd.Context(), c, mount())
		if err != nil {
			return err
		}
		return printKeys(keys)
	},
}

var crlDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a CRL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := cert.DeleteCRL(cmd.Context(), c, mount(), args[0]); err != nil {
			return err
		}
		fmt.Printf("CRL %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	crlCreateCmd.Flags().String("crl", "", "PEM CRL file (- for stdin)")
	_ = crlCreateCmd.MarkFlagRequired("crl")
	crlCmd.AddCommand(crlCreateCmd, crlReadCmd, crlListCmd, crlDeleteCmd)
}
