package kvstore

import (
	"context"
	"fmt"

	"github.com/newrelic/agent-control/internal/acerrors"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ConfigMap is the Kubernetes-variant Store: two ConfigMaps per agent,
// "local-data-<agent_id>" and "fleet-data-<agent_id>" (spec §6), with
// keys written/read directly off ConfigMap.Data, mirroring the
// teacher's own ReadConfig/ToConfigMap round trip.
type ConfigMap struct {
	client    kubernetes.Interface
	namespace string
}

func NewConfigMap(client kubernetes.Interface, namespace string) *ConfigMap {
	return &ConfigMap{client: client, namespace: namespace}
}

func configMapName(ns Namespace, agentID string) string {
	prefix := "fleet-data"
	if ns == NamespaceLocal {
		prefix = "local-data"
	}
	return fmt.Sprintf("%s-%s", prefix, agentID)
}

func (c *ConfigMap) Get(ctx context.Context, ns Namespace, agentID, key string) ([]byte, bool, error) {
	cm, err := c.client.CoreV1().ConfigMaps(c.namespace).Get(ctx, configMapName(ns, agentID), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, acerrors.New(acerrors.KindLoad, "kvstore.ConfigMap.Get", err)
	}
	v, ok := cm.Data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (c *ConfigMap) Set(ctx context.Context, ns Namespace, agentID, key string, value []byte) error {
	name := configMapName(ns, agentID)
	client := c.client.CoreV1().ConfigMaps(c.namespace)

	cm, err := client.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: c.namespace},
			Data:       map[string]string{},
		}
		cm.Data[key] = string(value)
		if _, err := client.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return acerrors.New(acerrors.KindStore, "kvstore.ConfigMap.Set", err)
		}
		return nil
	}
	if err != nil {
		return acerrors.New(acerrors.KindStore, "kvstore.ConfigMap.Set", err)
	}

	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[key] = string(value)
	if _, err := client.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return acerrors.New(acerrors.KindStore, "kvstore.ConfigMap.Set", err)
	}
	return nil
}

func (c *ConfigMap) Delete(ctx context.Context, ns Namespace, agentID, key string) error {
	name := configMapName(ns, agentID)
	client := c.client.CoreV1().ConfigMaps(c.namespace)

	cm, err := client.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return acerrors.New(acerrors.KindDelete, "kvstore.ConfigMap.Delete", err)
	}
	if cm.Data != nil {
		delete(cm.Data, key)
	}
	if _, err := client.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return acerrors.New(acerrors.KindDelete, "kvstore.ConfigMap.Delete", err)
	}
	return nil
}
