// Package worker hosts module instances and serves them over RPC.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"remote-module/logging"
	"remote-module/message"
	"remote-module/metrics"
	"remote-module/module"
)

var (
	ErrDuplicateName  = errors.New("worker: module name already in use")
	ErrModuleNotFound = errors.New("worker: no such module")
	ErrNoParameters   = errors.New("worker: module has no parameters")
)

type hosted struct {
	mod  module.Module
	info message.ModuleInfo
}

// Service is the "Worker" RPC service. Its exported methods follow the server's
// (ctx, *Args, *Reply) error convention.
type Service struct {
	name    string
	catalog *module.Catalog
	metrics *metrics.Metrics
	logger  *logrus.Logger

	// createTimeout bounds Create, which runs outside the server's timeout
	// middleware so that only Create decides whether a module is kept.
	createTimeout time.Duration

	mu      sync.RWMutex
	modules map[string]*hosted
}

// NewService creates an empty service. m and logger may be nil.
func NewService(name string, catalog *module.Catalog, m *metrics.Metrics, logger *logrus.Logger) *Service {
	if catalog == nil {
		catalog = module.Default
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		name:    name,
		catalog: catalog,
		metrics: m,
		logger:  logger,
		modules: make(map[string]*hosted),
	}
}

func (s *Service) entry(ctx context.Context) *logrus.Entry {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return s.logger.WithField(logging.FieldRequestID, id)
	}
	return logrus.NewEntry(s.logger)
}

func typeName(v any) string {
	return strings.TrimPrefix(reflect.TypeOf(v).String(), "*")
}

// Create builds a module with a registered constructor and stores it under args.Name.
func (s *Service) Create(ctx context.Context, args *message.CreateArgs, reply *message.CreateReply) error {
	if args.Name == "" {
		return errors.New("worker: empty module name")
	}
	if s.createTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.createTimeout)
		defer cancel()
	}
	ctor, err := s.catalog.Lookup(args.Constructor)
	if err != nil {
		return err
	}

	s.mu.RLock()
	_, taken := s.modules[args.Name]
	s.mu.RUnlock()
	if taken {
		return fmt.Errorf("%w: %q", ErrDuplicateName, args.Name)
	}

	mod, err := ctor.New(module.FromMessage(args.Input))
	if err != nil {
		return err
	}
	h := &hosted{
		mod: mod,
		info: message.ModuleInfo{
			Name:        args.Name,
			Constructor: args.Constructor,
			TypeName:    typeName(mod),
			Interface:   args.Interface,
		},
	}

	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		// the caller is about to see an error, so nobody would own the module
		s.mu.Unlock()
		closeModule(mod)
		return fmt.Errorf("create %q: %w", args.Name, err)
	}
	if _, taken := s.modules[args.Name]; taken {
		s.mu.Unlock()
		closeModule(mod)
		return fmt.Errorf("%w: %q", ErrDuplicateName, args.Name)
	}
	s.modules[args.Name] = h
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Created.Inc()
		s.metrics.LiveModules.Inc()
	}
	s.entry(ctx).WithFields(logging.ModuleFields(s.name, args.Name, args.Constructor)).Info("module created")

	reply.Name = args.Name
	reply.TypeName = h.info.TypeName
	return nil
}

func (s *Service) lookup(name string) (*hosted, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	return h, nil
}

// Forward calls the module's Forward.
func (s *Service) Forward(ctx context.Context, args *message.ForwardArgs, reply *message.ForwardReply) error {
	h, err := s.lookup(args.Name)
	if err != nil {
		return err
	}
	out, err := h.mod.Forward(ctx, module.FromMessage(args.Input))
	if err != nil {
		return err
	}
	reply.Values = out.Raw()
	return nil
}

// Delete removes and closes a module. Deleting an unknown name is not an error.
func (s *Service) Delete(ctx context.Context, args *message.DeleteArgs, reply *message.DeleteReply) error {
	s.mu.Lock()
	h, ok := s.modules[args.Name]
	delete(s.modules, args.Name)
	s.mu.Unlock()

	reply.Deleted = ok
	if !ok {
		return nil
	}
	if s.metrics != nil {
		s.metrics.Deleted.Inc()
		s.metrics.LiveModules.Dec()
	}
	s.entry(ctx).WithFields(logging.ModuleFields(s.name, args.Name, h.info.Constructor)).Info("module deleted")
	return closeModule(h.mod)
}

// Parameters returns the module's parameter tensors.
func (s *Service) Parameters(_ context.Context, args *message.ParametersArgs, reply *message.ParametersReply) error {
	h, err := s.lookup(args.Name)
	if err != nil {
		return err
	}
	p, ok := h.mod.(module.Parameterized)
	if !ok {
		return fmt.Errorf("%w: %q is a %s", ErrNoParameters, args.Name, h.info.TypeName)
	}
	for _, t := range p.Parameters() {
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		reply.Tensors = append(reply.Tensors, raw)
	}
	return nil
}

// List describes every hosted module, sorted by name.
func (s *Service) List(_ context.Context, _ *message.ListArgs, reply *message.ListReply) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reply.Worker = s.name
	reply.Modules = make([]message.ModuleInfo, 0, len(s.modules))
	for _, h := range s.modules {
		reply.Modules = append(reply.Modules, h.info)
	}
	slices.SortFunc(reply.Modules, func(a, b message.ModuleInfo) int { return strings.Compare(a.Name, b.Name) })
	return nil
}

// Len is the number of hosted modules.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.modules)
}

// Close drops every module, closing those that implement io.Closer.
func (s *Service) Close() error {
	s.mu.Lock()
	mods := s.modules
	s.modules = make(map[string]*hosted)
	s.mu.Unlock()

	var errs []error
	for _, h := range mods {
		if err := closeModule(h.mod); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", h.info.Name, err))
		}
	}
	if s.metrics != nil {
		s.metrics.LiveModules.Sub(float64(len(mods)))
	}
	return errors.Join(errs...)
}

func closeModule(m module.Module) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
