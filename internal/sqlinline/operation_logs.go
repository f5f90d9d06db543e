package sqlinline

const QCreateOperationLogTable = `--sql 2d7fcadd-b785-4f89-92ec-b33bb5eb7fa5
create table if not exists {{table}} (
    id uuid not null,
    identity_id text not null,
    created_at text not null,
    user_sub text,
    provider text not null,
    operation text not null,
    model text not null,
    status text not null,
    request_id text,
    cost_usd numeric(12, 6) not null default 0,
    primary key (identity_id, created_at, id)
);
`

const QInsertOperationLog = `--sql 363d4e70-031c-4b82-84a6-1702ca3b79aa
insert into {{table}} (id, identity_id, created_at, user_sub, provider, operation, model, status, request_id, cost_usd)
values ($1::uuid, $2::text, $3::text, nullif($4::text, ''), $5::text, $6::text, $7::text, $8::text, nullif($9::text, ''), $10::numeric);
`

const QListOperationLogs = `--sql ae2eca8d-afd1-4cf4-8fad-4ca356c46284
select id::text, identity_id, created_at, coalesce(user_sub, ''), provider, operation, model, status, coalesce(request_id, ''), cost_usd::float8
from {{table}}
where identity_id = $1::text
order by created_at desc, id
limit $2::int;
`
