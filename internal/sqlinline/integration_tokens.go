package sqlinline

const QCreateIntegrationTokenTable = `--sql 50b9d68d-f388-41ca-ae80-b29c9ee9b3ee
create table if not exists integration_tokens (
    id uuid primary key default gen_random_uuid(),
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QSelectIntegrationToken = `--sql a9126555-ce1d-4b13-99c7-b3129a150a52
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 234c39b9-5920-4681-ac28-249f01477a85
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

const QListIntegrationProviders = `--sql 86733df2-58fc-49b7-8b21-609a17de1d10
select provider, updated_at
from integration_tokens
order by provider;
`
