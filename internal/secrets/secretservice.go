package secrets

import (
	"errors"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	ssDest            = "org.freedesktop.secrets"
	ssPath            = dbus.ObjectPath("/org/freedesktop/secrets")
	ssServiceIface    = "org.freedesktop.Secret.Service"
	ssCollectionIface = "org.freedesktop.Secret.Collection"
	ssItemIface       = "org.freedesktop.Secret.Item"
	ssPromptIface     = "org.freedesktop.Secret.Prompt"
	ssSessionIface    = "org.freedesktop.Secret.Session"

	ssDefaultAlias    = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")
	ssLoginCollection = dbus.ObjectPath("/org/freedesktop/secrets/collection/login")
	ssNoPrompt        = dbus.ObjectPath("/")

	ssDefaultTarget = "default"
	ssApplication   = "credstore"
)

// ssClient is one session-bus connection with an open transfer session
type ssClient struct {
	conn    *dbus.Conn
	service dbus.BusObject
	session *ssSession
}

func dialSecretService(cfg SecretServiceConfig) (*ssClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, platformErr("connect", err)
	}
	c := &ssClient{conn: conn, service: conn.Object(ssDest, ssPath)}
	c.session, err = openSession(c.service, cfg.Encryption)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *ssClient) Close() {
	if c.session != nil {
		c.conn.Object(ssDest, c.session.path).Call(ssSessionIface+".Close", 0)
	}
	c.conn.Close()
}

func (c *ssClient) search(attrs map[string]string) (unlocked, locked []dbus.ObjectPath, err error) {
	err = c.service.Call(ssServiceIface+".SearchItems", 0, attrs).Store(&unlocked, &locked)
	if err != nil {
		return nil, nil, dbusErr("search", err)
	}
	return unlocked, locked, nil
}

func (c *ssClient) unlock(paths []dbus.ObjectPath) error {
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	if err := c.service.Call(ssServiceIface+".Unlock", 0, paths).Store(&unlocked, &prompt); err != nil {
		return dbusErr("unlock", err)
	}
	_, err := c.prompt(prompt)
	return err
}

// prompt runs a prompt and blocks until its Completed signal arrives
func (c *ssClient) prompt(path dbus.ObjectPath) (dbus.Variant, error) {
	if path == ssNoPrompt || path == "" {
		return dbus.Variant{}, nil
	}
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(ssPromptIface),
		dbus.WithMatchMember("Completed"),
	}
	if err := c.conn.AddMatchSignal(match...); err != nil {
		return dbus.Variant{}, dbusErr("prompt", err)
	}
	defer c.conn.RemoveMatchSignal(match...)

	signals := make(chan *dbus.Signal, 4)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	if err := c.conn.Object(ssDest, path).Call(ssPromptIface+".Prompt", 0, "").Err; err != nil {
		return dbus.Variant{}, dbusErr("prompt", err)
	}
	for sig := range signals {
		if sig.Path != path || sig.Name != ssPromptIface+".Completed" || len(sig.Body) < 2 {
			continue
		}
		if dismissed, _ := sig.Body[0].(bool); dismissed {
			return dbus.Variant{}, &PlatformError{Op: "prompt", Msg: "prompt dismissed by user"}
		}
		result, _ := sig.Body[1].(dbus.Variant)
		return result, nil
	}
	return dbus.Variant{}, &PlatformError{Op: "prompt", Msg: "bus connection closed while waiting for prompt"}
}

func (c *ssClient) attributes(item dbus.ObjectPath) (map[string]string, error) {
	v, err := c.conn.Object(ssDest, item).GetProperty(ssItemIface + ".Attributes")
	if err != nil {
		return nil, dbusErr("attributes", err)
	}
	attrs, ok := v.Value().(map[string]string)
	if !ok {
		return nil, &PlatformError{Op: "attributes", Msg: "unexpected attribute type " + v.Signature().String()}
	}
	return attrs, nil
}

func (c *ssClient) getSecret(item dbus.ObjectPath) ([]byte, error) {
	var secret ssSecret
	if err := c.conn.Object(ssDest, item).Call(ssItemIface+".GetSecret", 0, c.session.path).Store(&secret); err != nil {
		return nil, dbusErr("get", err)
	}
	value, err := c.session.decrypt(secret)
	if err != nil {
		return nil, platformErr("get", err)
	}
	return value, nil
}

func (c *ssClient) setSecret(item dbus.ObjectPath, value []byte) error {
	secret, err := c.session.encrypt(value)
	if err != nil {
		return platformErr("set", err)
	}
	if err := c.conn.Object(ssDest, item).Call(ssItemIface+".SetSecret", 0, secret).Err; err != nil {
		return dbusErr("set", err)
	}
	return nil
}

func (c *ssClient) createItem(collection dbus.ObjectPath, label string, attrs map[string]string, value []byte) error {
	secret, err := c.session.encrypt(value)
	if err != nil {
		return platformErr("set", err)
	}
	props := map[string]dbus.Variant{
		ssItemIface + ".Label":      dbus.MakeVariant(label),
		ssItemIface + ".Attributes": dbus.MakeVariant(attrs),
	}
	var item, prompt dbus.ObjectPath
	err = c.conn.Object(ssDest, collection).Call(ssCollectionIface+".CreateItem", 0, props, secret, true).Store(&item, &prompt)
	if err != nil {
		return dbusErr("set", err)
	}
	_, err = c.prompt(prompt)
	return err
}

func (c *ssClient) deleteItem(item dbus.ObjectPath) error {
	var prompt dbus.ObjectPath
	if err := c.conn.Object(ssDest, item).Call(ssItemIface+".Delete", 0).Store(&prompt); err != nil {
		return dbusErr("delete", err)
	}
	_, err := c.prompt(prompt)
	return err
}

// defaultCollection resolves the default alias, falling back to the login
// collection on daemons that have no alias set
func (c *ssClient) defaultCollection() dbus.ObjectPath {
	var path dbus.ObjectPath
	err := c.service.Call(ssServiceIface+".ReadAlias", 0, "default").Store(&path)
	if err != nil || path == ssNoPrompt || path == "" {
		return ssLoginCollection
	}
	return path
}

// SecretServiceBuilder stores credentials as items in the default collection
// of the freedesktop Secret Service
type SecretServiceBuilder struct {
	cfg SecretServiceConfig
}

// NewSecretServiceBuilder creates a Secret Service builder
func NewSecretServiceBuilder(cfg SecretServiceConfig) *SecretServiceBuilder {
	return &SecretServiceBuilder{cfg: cfg}
}

// Kind implements Builder
func (b *SecretServiceBuilder) Kind() BackendKind {
	return BackendSecretService
}

// Build implements Builder. The target names the item's target attribute.
func (b *SecretServiceBuilder) Build(target *string, service, user string) (Credential, error) {
	if err := validateIdentity("build", service, user); err != nil {
		return nil, err
	}
	t := targetOr(target, ssDefaultTarget)
	if t == "" {
		return nil, invalidErr("build", "target", "must not be empty")
	}
	return &SecretServiceCredential{cfg: b.cfg, service: service, user: user, target: t}, nil
}

// Find implements Finder. Unlocked items are visited before locked ones;
// items without a username attribute or with an unreadable secret are
// skipped.
func (b *SecretServiceBuilder) Find(service string, target *string) ([]Found, error) {
	attrs := map[string]string{"service": service}
	if target != nil {
		attrs["target"] = *target
	}

	var found []Found
	err := withSecretService(b.cfg, func(c *ssClient) error {
		unlocked, locked, err := c.search(attrs)
		if err != nil {
			return err
		}
		if len(locked) > 0 {
			if err := c.unlock(locked); err != nil {
				log().Debug("could not unlock items", "backend", BackendSecretService, "count", len(locked), "error", err)
			}
		}
		for _, item := range append(unlocked, locked...) {
			itemAttrs, err := c.attributes(item)
			if err != nil {
				log().Debug("skipping item", "backend", BackendSecretService, "item", item, "error", err)
				continue
			}
			account, ok := itemAttrs["username"]
			if !ok {
				continue
			}
			secret, err := c.getSecret(item)
			if err != nil {
				log().Debug("skipping item", "backend", BackendSecretService, "item", item, "error", err)
				continue
			}
			found = append(found, Found{Account: account, Secret: secret})
		}
		return nil
	})
	return found, err
}

func withSecretService(cfg SecretServiceConfig, fn func(*ssClient) error) error {
	c, err := dialSecretService(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// SecretServiceCredential is identified by its (service, username, target)
// attributes
type SecretServiceCredential struct {
	cfg     SecretServiceConfig
	service string
	user    string
	target  string
}

// Kind implements Credential
func (s *SecretServiceCredential) Kind() BackendKind {
	return BackendSecretService
}

func (s *SecretServiceCredential) searchAttributes() map[string]string {
	return map[string]string{
		"service":  s.service,
		"username": s.user,
		"target":   s.target,
	}
}

func (s *SecretServiceCredential) itemAttributes() map[string]string {
	attrs := s.searchAttributes()
	attrs["application"] = ssApplication
	return attrs
}

func (s *SecretServiceCredential) label() string {
	return s.user + "@" + s.service
}

// matching returns every item carrying this credential's attributes,
// unlocking locked ones
func (s *SecretServiceCredential) matching(c *ssClient) ([]dbus.ObjectPath, error) {
	unlocked, locked, err := c.search(s.searchAttributes())
	if err != nil {
		return nil, err
	}
	if len(locked) > 0 {
		if err := c.unlock(locked); err != nil {
			return nil, err
		}
	}
	return append(unlocked, locked...), nil
}

func (s *SecretServiceCredential) single(c *ssClient) (dbus.ObjectPath, error) {
	items, err := s.matching(c)
	if err != nil {
		return "", err
	}
	switch len(items) {
	case 0:
		return "", ErrNoEntry
	case 1:
		return items[0], nil
	default:
		return "", &AmbiguousError{Count: len(items)}
	}
}

// GetSecret implements Credential
func (s *SecretServiceCredential) GetSecret() ([]byte, error) {
	var secret []byte
	err := withSecretService(s.cfg, func(c *ssClient) error {
		item, err := s.single(c)
		if err != nil {
			return err
		}
		secret, err = c.getSecret(item)
		return err
	})
	return secret, err
}

// SetSecret implements Credential. An existing item is updated in place,
// otherwise a new item is created in the default collection.
func (s *SecretServiceCredential) SetSecret(secret []byte) error {
	return withSecretService(s.cfg, func(c *ssClient) error {
		item, err := s.single(c)
		if err == nil {
			return c.setSecret(item, secret)
		}
		if !errors.Is(err, ErrNoEntry) {
			return err
		}
		collection := c.defaultCollection()
		if err := c.unlock([]dbus.ObjectPath{collection}); err != nil {
			return err
		}
		return c.createItem(collection, s.label(), s.itemAttributes(), secret)
	})
}

// Delete implements Credential
func (s *SecretServiceCredential) Delete() error {
	return withSecretService(s.cfg, func(c *ssClient) error {
		item, err := s.single(c)
		if err != nil {
			return err
		}
		return c.deleteItem(item)
	})
}

// secretServiceProbe checks once per process whether a Secret Service
// daemon answers on the session bus. Only connection and search failures
// count against it; finding nothing is fine.
var secretServiceProbe = NewProber(string(BackendSecretService), func() error {
	return withSecretService(SecretServiceConfig{}, func(c *ssClient) error {
		_, _, err := c.search(map[string]string{
			"service":  "credstore-probe",
			"username": uuid.NewString(),
		})
		return err
	})
})

// ProbeSecretService reports whether the Secret Service is reachable,
// probing on first use
func ProbeSecretService() (ProbeState, error) {
	secretServiceProbe.Available()
	return secretServiceProbe.State(), secretServiceProbe.Err()
}

// dbusErrorName returns the D-Bus error name carried by err, if any
func dbusErrorName(err error) string {
	var value dbus.Error
	if errors.As(err, &value) {
		return value.Name
	}
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name
	}
	return ""
}

func dbusErr(op string, err error) error {
	if name := dbusErrorName(err); name != "" {
		return &PlatformError{Op: op, Msg: name, Err: err}
	}
	return platformErr(op, err)
}
